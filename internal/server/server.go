package server

import (
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"plataforma/internal/database"
	"plataforma/internal/pluggy"
	"plataforma/internal/syncer"
)

type Server struct {
	Port     int
	DB       database.DB
	Pluggy   *pluggy.Client
	Syncer   *syncer.Syncer
	Watchdog *syncer.Watchdog
}

func NewServer(serv *Server) *http.Server {

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", serv.Port),
		Handler:      serv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
