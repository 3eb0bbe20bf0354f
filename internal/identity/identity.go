// Package identity resolves the user a playlist submission is made for.
package identity

import (
	"context"
	"errors"

	"setlist/pkg/models"
)

// UserKey is the storage key the current user record is kept under.
const UserKey = "User"

// ErrNoUser is returned when no user is registered.
var ErrNoUser = errors.New("no user registered")

// Provider returns the current user identity.
type Provider interface {
	Current(ctx context.Context) (*models.Identity, error)
}

// Static always returns the same identity. A nil Identity means no user.
type Static struct {
	Identity *models.Identity
}

// Current implements Provider.
func (s Static) Current(ctx context.Context) (*models.Identity, error) {
	if s.Identity == nil || s.Identity.ID == "" {
		return nil, ErrNoUser
	}
	id := *s.Identity
	return &id, nil
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*models.Identity, error)

// Current implements Provider.
func (f ProviderFunc) Current(ctx context.Context) (*models.Identity, error) {
	return f(ctx)
}
