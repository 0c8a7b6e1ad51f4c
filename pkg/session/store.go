package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned for missing sessions and for pending entries
// that were never stored, already consumed, or expired. Callers cannot
// tell these apart, which is intended.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions across requests, keyed by session ID.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}

// PendingCache is the fallback lookup path for in-flight correlation
// state, keyed by the correlation token itself. It exists because the
// session cookie does not reliably survive the redirect round trip;
// the callback consults the session first and this cache second.
//
// Take is destructive: a successful lookup removes the entry, so a
// correlation token is consumable exactly once.
type PendingCache interface {
	Put(ctx context.Context, pending *PendingAuth) error
	Take(ctx context.Context, provider Provider, state string) (*PendingAuth, error)
}
