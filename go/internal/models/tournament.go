package models

import (
	"time"

	"github.com/google/uuid"
)

// Tournament groups matches under a branded competition
type Tournament struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	LogoURL   *string   `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
