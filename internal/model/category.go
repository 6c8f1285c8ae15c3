package model

import (
	"time"

	"github.com/google/uuid"
)

// Category groups transactions. Seeded defaults have UserDefined == false
// and never leave the device; user-created categories sync.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	UserDefined bool      `json:"user_defined"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GenerateID assigns a new UUID if the category does not have one yet.
func (c *Category) GenerateID() {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
}
