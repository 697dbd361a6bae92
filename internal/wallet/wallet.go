// Package wallet persists the single wallet identifier saved per user.
package wallet

import (
	"context"
	"time"

	"github.com/ggonzalez94/bark-bot/internal/model"
)

// Record is the one wallet identifier saved for a user. At most one record
// exists per user; saving again replaces the previous address.
type Record struct {
	UserID    model.UserID
	Address   string
	UpdatedAt time.Time
}

// Store is the wallet persistence contract. Get returns (nil, nil) when no
// record exists; absence is a normal outcome, not an error.
type Store interface {
	Get(ctx context.Context, userID model.UserID) (*Record, error)
	Upsert(ctx context.Context, userID model.UserID, address string) error
	DeleteAll(ctx context.Context, userID model.UserID) error
	Close() error
}
