// Package data stores visitor preferences. Postgres through gorm is used when
// a database is configured; otherwise visitors live in process memory.
package data

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned for visitor ids that are not stored.
var ErrNotFound = errors.New("visitor not found")

// Visitor is someone who saved preferences on the config page.
type Visitor struct {
	gorm.Model
	Name string
	// AutoRedirect sends the visitor straight to the dashboard instead of
	// showing the page.
	AutoRedirect bool
	LastSeen     time.Time
	Visits       int
}

// Store persists visitors. Save assigns an ID to visitors that have none.
type Store interface {
	Find(ctx context.Context, id uint) (*Visitor, error)
	Save(ctx context.Context, v *Visitor) error
}
