package services

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/session"
)

// Verifier checks credentials; CredentialVerifier is the production one.
type Verifier interface {
	Verify(ctx context.Context, loginName, password string) (*models.User, error)
}

// TokenVerifier checks the anti-forgery token presented for a session.
type TokenVerifier interface {
	Verify(sessionID, presented string) error
}

// SessionStore creates and destroys server-side sessions.
type SessionStore interface {
	Establish(previousID string, identity *models.Identity, csrfToken string) (*session.Session, error)
	Destroy(id string)
}

// LoginRequest is everything the login handshake consumes.
type LoginRequest struct {
	SessionID string
	CSRFToken string
	LoginName string
	Password  string
}

// LoginResult carries the new authenticated session and the user record.
type LoginResult struct {
	Session *session.Session
	User    *models.User
}

// Authenticator runs the login handshake: anti-forgery check, credential
// check, then a fresh session with a fresh anti-forgery token. Nothing
// changes unless every step succeeds.
type Authenticator struct {
	verifier Verifier
	tokens   TokenVerifier
	sessions SessionStore
	logger   logging.Logger
}

func NewAuthenticator(v Verifier, t TokenVerifier, s SessionStore, l logging.Logger) *Authenticator {
	return &Authenticator{verifier: v, tokens: t, sessions: s, logger: l}
}

// Authenticate checks the anti-forgery token before looking at credentials.
// On success the previous session (if any) is replaced, so its id and its
// anti-forgery token stop working.
func (a *Authenticator) Authenticate(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := a.tokens.Verify(req.SessionID, req.CSRFToken); err != nil {
		a.logger.Warn(ctx, "login rejected: anti-forgery check failed")
		return nil, err
	}

	user, err := a.verifier.Verify(ctx, req.LoginName, req.Password)
	if err != nil {
		a.logger.Warn(ctx, "login rejected", "login_name", req.LoginName, "error", err)
		return nil, err
	}

	token, err := csrf.NewToken()
	if err != nil {
		return nil, err
	}

	s, err := a.sessions.Establish(req.SessionID, models.IdentityOf(user), token)
	if err != nil {
		return nil, err
	}

	a.logger.Info(ctx, "user authenticated", "login_name", user.LoginName)
	return &LoginResult{Session: s, User: user}, nil
}

// Logout destroys the session and with it the bound anti-forgery token.
func (a *Authenticator) Logout(ctx context.Context, sessionID string) {
	a.sessions.Destroy(sessionID)
	a.logger.Info(ctx, "session closed")
}
