package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/crosspost-labs/crosspost/pkg/session"
)

const (
	sessionCookieName = "crosspost.session"
	sessionContextKey = "crosspost.session"
)

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionManager binds browser requests to server-side sessions. The
// cookie carries only a signed session key; all OAuth material stays in
// the store.
type SessionManager struct {
	store  session.Store
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewSessionManager(store session.Store, secret []byte, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		store:  store,
		secret: secret,
		ttl:    ttl,
		secure: secure,
	}
}

// Middleware resumes the session named by the cookie, or mints a fresh
// one when the cookie is absent, invalid or points nowhere. The session
// is persisted after the handler ran, so handler mutations stick.
func (m *SessionManager) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := m.resume(c)
		if sess == nil {
			sess = session.New()
			if err := m.writeCookie(c, sess.ID); err != nil {
				return fmt.Errorf("unable to issue session cookie: %w", err)
			}
		}
		c.Set(sessionContextKey, sess)

		err := next(c)

		if saveErr := m.store.Save(c.Request().Context(), sess); saveErr != nil {
			slog.Error("unable to persist session", "session_id", sess.ID, "error", saveErr)
			if err == nil {
				err = saveErr
			}
		}
		return err
	}
}

func (m *SessionManager) resume(c echo.Context) *session.Session {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims := &sessionClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil || claims.SID == "" {
		slog.Debug("rejecting session cookie", "error", err)
		return nil
	}

	sess, err := m.store.Get(c.Request().Context(), claims.SID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Warn("session lookup failed", "session_id", claims.SID, "error", err)
		}
		return nil
	}
	return sess
}

func (m *SessionManager) writeCookie(c echo.Context, sid string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return err
	}

	// SameSite=Lax keeps the cookie on the top-level redirect back from
	// the provider.
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// CurrentSession returns the session the middleware attached, nil
// outside of it.
func CurrentSession(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionContextKey).(*session.Session)
	return sess
}
