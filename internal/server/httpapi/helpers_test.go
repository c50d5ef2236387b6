package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/dmitrijs2005/gatekeeper/internal/server/session"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

var seeds = services.SeedPasswords{User: "password", Admin: "admin"}

type testAPI struct {
	srv      *httptest.Server
	users    *services.UserService
	sessions *session.Registry
}

// newTestAPI runs the full stack over an in-memory SQLite store seeded with
// the bootstrap accounts.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	db, rm, err := repomanager.Open(ctx, "", true, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, rm.RunMigrations(ctx, db))

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	clock := abtime.NewManualAtTime(epoch)
	log := logging.Nop()

	registry := session.NewRegistry(time.Hour, clock)
	tokens := csrf.NewService(registry)
	us := services.NewUserService(db, rm, hasher, clock, log)
	_, err = us.Bootstrap(ctx, seeds)
	require.NoError(t, err)

	a := services.NewAuthenticator(services.NewCredentialVerifier(db, rm, hasher), tokens, registry, log)
	h := NewHandler(log, us, a, tokens, registry, auth.NewTokenIssuer([]byte("test-secret"), time.Hour, clock), nil, false)

	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, users: us, sessions: registry}
}

// client is a browser stand-in: it keeps cookies and echoes the latest
// anti-forgery token in the X-CSRF-TOKEN header.
type client struct {
	t    *testing.T
	base string
	http *http.Client
	csrf string
}

func (api *testAPI) client(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: api.srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(req *http.Request) *http.Response {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (c *client) get(path string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *client) postForm(path string, vals url.Values) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(vals.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.csrf != "" {
		req.Header.Set(common.CSRFHeaderName, c.csrf)
	}
	return c.do(req)
}

func (c *client) postJSON(path string, body string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.csrf != "" {
		req.Header.Set(common.CSRFHeaderName, c.csrf)
	}
	return c.do(req)
}

func (c *client) fetchCSRF() string {
	c.t.Helper()
	resp := c.get("/rest/user/csrf")
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var tok csrf.Token
	decode(c.t, resp, &tok)
	c.csrf = tok.Token
	return tok.Token
}

// login performs the csrf + authenticate handshake and keeps the rotated token.
func (c *client) login(loginName, password string) *http.Response {
	c.t.Helper()
	c.fetchCSRF()
	resp := c.postForm(PathAuthenticate, url.Values{"loginName": {loginName}, "password": {password}})
	if resp.StatusCode == http.StatusOK {
		c.csrf = resp.Header.Get(common.CSRFHeaderName)
	}
	return resp
}

func (c *client) mustLogin(loginName, password string) *models.FrontendUser {
	c.t.Helper()
	resp := c.login(loginName, password)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var u models.FrontendUser
	decode(c.t, resp, &u)
	return &u
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
