// Package csrf implements the anti-forgery token protocol: a random token
// is bound to a session on first request, returned unchanged on every later
// request, and must be echoed back on state-changing requests.
package csrf

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

// Token is the wire form handed to clients.
type Token struct {
	HeaderName    string `json:"headerName"`
	ParameterName string `json:"parameterName"`
	Token         string `json:"token"`
}

// Store binds tokens to sessions. LoadOrStoreCSRF must perform its
// check-and-set atomically.
type Store interface {
	LoadOrStoreCSRF(sessionID string, gen func() (string, error)) (string, error)
}

// Service issues and verifies anti-forgery tokens.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// NewToken returns a fresh random token value.
func NewToken() (string, error) {
	return common.MakeRandHexString(32)
}

// Issue returns the token bound to sessionID, generating it on first use.
func (s *Service) Issue(sessionID string) (*Token, error) {
	tok, err := s.store.LoadOrStoreCSRF(sessionID, NewToken)
	if err != nil {
		return nil, err
	}
	return &Token{HeaderName: common.CSRFHeaderName, ParameterName: common.CSRFParameterName, Token: tok}, nil
}

// Verify checks presented against the token bound to sessionID. A session
// without a token gets one bound first, so the check then fails. Missing
// sessions, empty and mismatching tokens all yield common.ErrorForbidden.
func (s *Service) Verify(sessionID, presented string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: no session", common.ErrorForbidden)
	}

	expected, err := s.store.LoadOrStoreCSRF(sessionID, NewToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: no session", common.ErrorForbidden)
		}
		return err
	}

	if presented == "" {
		return fmt.Errorf("%w: missing anti-forgery token", common.ErrorForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return fmt.Errorf("%w: invalid anti-forgery token", common.ErrorForbidden)
	}
	return nil
}

// Presented extracts the token a request carries. The header wins over the
// request parameter when both are present.
func Presented(r *http.Request) string {
	if v := r.Header.Get(common.CSRFHeaderName); v != "" {
		return v
	}
	return r.FormValue(common.CSRFParameterName)
}
