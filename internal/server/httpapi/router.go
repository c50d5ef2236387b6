package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

// Paths of the login endpoints. They verify the anti-forgery token
// themselves, ahead of the credentials.
const (
	PathAuthenticate = "/rest/user/authenticate"
	PathLogin        = "/rest/login"
)

// NewRouter registers every endpoint on a gorilla/mux router and wraps it
// with session loading, request logging and anti-forgery checks.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: common.ErrorNotFound.Error()})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.Use(h.loadSession, h.logRequests, h.requireCSRF(map[string]bool{
		PathAuthenticate: true,
		PathLogin:        true,
	}))

	r.HandleFunc("/rest/say-hello", h.handle(h.SayHello)).Methods(http.MethodGet)
	r.HandleFunc(PathLogin, h.handle(h.Authenticate)).Methods(http.MethodPost)

	u := r.PathPrefix("/rest/user").Subrouter()
	u.HandleFunc("/csrf", h.handle(h.CSRFToken)).Methods(http.MethodGet)
	u.HandleFunc("/authenticate", h.handle(h.Authenticate)).Methods(http.MethodPost)
	u.HandleFunc("/logout", h.handle(h.Logout)).Methods(http.MethodPost)
	u.HandleFunc("/info", h.handle(h.Info)).Methods(http.MethodGet)
	u.HandleFunc("/add", h.handle(h.AddUser)).Methods(http.MethodPost)
	u.HandleFunc("/addUser", h.handle(h.AddUserJSON)).Methods(http.MethodPost)
	u.HandleFunc("/ban", h.handle(h.Ban)).Methods(http.MethodPost)
	u.HandleFunc("/unban", h.handle(h.Unban)).Methods(http.MethodPost)
	u.HandleFunc("/updateEmail", h.handle(h.UpdateEmail)).Methods(http.MethodPost)
	u.HandleFunc("/updateContactEmail", h.handle(h.UpdateEmail)).Methods(http.MethodPost)
	u.HandleFunc("/updateDisplayName", h.handle(h.UpdateDisplayName)).Methods(http.MethodPost)
	u.HandleFunc("/editUser", h.handle(h.EditUser)).Methods(http.MethodPost)
	u.HandleFunc("/changePassword", h.handle(h.ChangePassword)).Methods(http.MethodPost)
	u.HandleFunc("/delete", h.handle(h.Delete)).Methods(http.MethodPost)
	u.HandleFunc("/adminUserList", h.handle(h.AdminUserList)).Methods(http.MethodGet)
	u.HandleFunc("/simpleList", h.handle(h.SimpleList)).Methods(http.MethodGet)

	return r
}
