package models

import "time"

// Product represents a row of the productos catalog.
type Product struct {
	ID          int64      `json:"id"`
	Name        string     `json:"nombre"`
	Description string     `json:"descripcion"`
	Price       float64    `json:"precio"`
	ImageURL    string     `json:"imagen_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// User represents an admin account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Stats holds the dashboard summary cards.
type Stats struct {
	TotalProducts int
	TotalUsers    int
	LatestProduct string
}

// NoLatestProduct is shown when the catalog is empty.
const NoLatestProduct = "N/A"

// FlashKind classifies a one-shot session message.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

// Flash is a message carried across one redirect.
type Flash struct {
	Kind FlashKind `json:"kind"`
	Text string    `json:"text"`
}
