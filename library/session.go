package library

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the acting identity for one logged-in user. It travels in a
// context.Context from the interactive boundary down to the services.
type Session struct {
	ID        string
	User      User
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func NewSession(user User, issuedAt time.Time, ttl time.Duration) Session {
	return Session{
		ID:        uuid.NewString(),
		User:      user,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
}

func (s Session) IsAdmin() bool {
	return s.User.Active && s.User.Role.IsAdmin()
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// RequireAdmin fails with ErrForbidden unless ctx carries an administrator session.
func RequireAdmin(ctx context.Context) error {
	s, ok := SessionFrom(ctx)
	if !ok || !s.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
