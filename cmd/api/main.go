package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"

	"plataforma/internal/database"
	"plataforma/internal/pluggy"
	"plataforma/internal/server"
	"plataforma/internal/syncer"
)

func main() {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	db := database.New()
	client := pluggy.New()

	srv := server.NewServer(&server.Server{
		Port:     port,
		DB:       db,
		Pluggy:   client,
		Syncer:   syncer.New(db, client),
		Watchdog: &syncer.Watchdog{DB: db},
	})

	log.Printf("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
