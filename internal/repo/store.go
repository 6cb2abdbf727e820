// Package repo persists sessions and profiles. A Store commits the pair for
// one user as a single unit.
package repo

import (
	"context"
	"errors"

	"github.com/astrobot/server/internal/model"
)

var (
	// ErrNotFound means neither a session nor a profile exists for the user.
	ErrNotFound = errors.New("user not found")
	// ErrVersionConflict means the session changed since it was loaded.
	ErrVersionConflict = errors.New("session version conflict")
)

// Snapshot is the stored state of one user. Either pointer may be nil.
type Snapshot struct {
	Session *model.Session
	Profile *model.Profile
}

// Store is the Session Store and Profile Repository.
type Store interface {
	// Load returns ErrNotFound for a user that has never been committed.
	Load(ctx context.Context, userID string) (Snapshot, error)
	// Commit writes the session, and the profile when non-nil, atomically.
	// The session's Version must be the one it was loaded with (0 for a new
	// session); the returned session carries the new version.
	Commit(ctx context.Context, session model.Session, profile *model.Profile) (model.Session, error)
}
