package httpapi

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/session"
)

type ctxKey string

const sessionKey ctxKey = "session"

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// sessionFrom returns the request's session, or nil for requests without one.
func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

func sessionIDFrom(ctx context.Context) string {
	if s := sessionFrom(ctx); s != nil {
		return s.ID
	}
	return ""
}

// identityFrom returns the authenticated identity, or nil.
func identityFrom(ctx context.Context) *models.Identity {
	if s := sessionFrom(ctx); s != nil {
		return s.Identity
	}
	return nil
}
