package models

import "time"

type User struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Email     string `gorm:"unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
