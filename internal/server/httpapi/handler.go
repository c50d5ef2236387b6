// Package httpapi exposes the user and session operations over HTTP.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/authz"
	"github.com/dmitrijs2005/gatekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/dmitrijs2005/gatekeeper/internal/server/session"
)

// Handler holds the collaborators of every endpoint.
type Handler struct {
	users         *services.UserService
	authenticator *services.Authenticator
	csrf          *csrf.Service
	sessions      *session.Registry
	tokens        *auth.TokenIssuer
	extractor     Extractor
	secureCookies bool
	logger        logging.Logger
}

// NewHandler builds a Handler. A nil extractor selects DefaultExtractor.
func NewHandler(l logging.Logger, us *services.UserService, a *services.Authenticator, c *csrf.Service,
	s *session.Registry, t *auth.TokenIssuer, e Extractor, secureCookies bool) *Handler {
	if e == nil {
		e = DefaultExtractor()
	}
	return &Handler{
		users:         us,
		authenticator: a,
		csrf:          c,
		sessions:      s,
		tokens:        t,
		extractor:     e,
		secureCookies: secureCookies,
		logger:        l.With("module", "http_api"),
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(r.Context(), w, h.logger, err)
		}
	}
}

// CSRFToken returns the session's anti-forgery token, opening an anonymous
// session first when the request has none.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) error {
	sid := sessionIDFrom(r.Context())
	if sid == "" {
		s, err := h.sessions.Create()
		if err != nil {
			return err
		}
		sid = s.ID
		h.setSessionCookie(w, sid)
	}

	tok, err := h.csrf.Issue(sid)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, tok)
	return nil
}

// Authenticate runs the login handshake. The anti-forgery token is checked
// before the credentials are even parsed.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) error {
	sid := sessionIDFrom(r.Context())
	presented := csrf.Presented(r)

	creds, err := h.extractor.Extract(r)
	if err != nil {
		if verr := h.csrf.Verify(sid, presented); verr != nil {
			return verr
		}
		return err
	}

	res, err := h.authenticator.Authenticate(r.Context(), services.LoginRequest{
		SessionID: sid,
		CSRFToken: presented,
		LoginName: creds.LoginName,
		Password:  creds.Password,
	})
	if err != nil {
		return err
	}

	h.setSessionCookie(w, res.Session.ID)
	w.Header().Set(common.CSRFHeaderName, res.Session.CSRFToken)
	writeJSON(w, http.StatusOK, models.ToFrontendUser(res.User))
	return nil
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) error {
	s := sessionFrom(r.Context())
	if err := authz.Authorize(authz.OpLogout, identityFrom(r.Context()), ""); err != nil {
		return err
	}
	h.authenticator.Logout(r.Context(), s.ID)
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) error {
	u, err := h.users.Info(r.Context(), identityFrom(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, models.ToFrontendUser(u))
	return nil
}

// AddUser creates a user from form fields.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) error {
	if err := parseForm(r); err != nil {
		return err
	}
	return h.addUser(w, r, services.NewUser{
		LoginName:    r.PostFormValue("loginName"),
		Password:     r.PostFormValue("password"),
		DisplayName:  r.PostFormValue("displayName"),
		ContactEmail: r.PostFormValue("contactEmail"),
		AvatarID:     optionalField(r, "avatarId"),
	})
}

type newUserRequest struct {
	LoginName    string  `json:"loginName"`
	Password     string  `json:"password"`
	DisplayName  string  `json:"displayName"`
	ContactEmail string  `json:"contactEmail"`
	AvatarID     *string `json:"avatarId"`
}

// AddUserJSON creates a user from a JSON body.
func (h *Handler) AddUserJSON(w http.ResponseWriter, r *http.Request) error {
	var req newUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	return h.addUser(w, r, services.NewUser(req))
}

func (h *Handler) addUser(w http.ResponseWriter, r *http.Request, in services.NewUser) error {
	u, err := h.users.Create(r.Context(), identityFrom(r.Context()), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, models.ToFrontendUser(u))
	return nil
}

func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) error {
	return h.setBanned(w, r, true)
}

func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) error {
	return h.setBanned(w, r, false)
}

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) error {
	ref, err := targetRef(r)
	if err != nil {
		return err
	}
	if ref.ID == "" && ref.LoginName == "" {
		return fmt.Errorf("%w: uuid required", common.ErrorValidation)
	}

	ban := h.users.Unban
	if banned {
		ban = h.users.Ban
	}
	u, err := ban(r.Context(), identityFrom(r.Context()), ref)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, models.ToFrontendUser(u))
	return nil
}

// UpdateEmail changes the contact e-mail of the caller, or of the record
// named by uuid/loginName.
func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) error {
	ref, err := targetRef(r)
	if err != nil {
		return err
	}
	email := optionalField(r, "contactEmail")
	if email == nil {
		return fmt.Errorf("%w: contactEmail required", common.ErrorValidation)
	}
	return h.updateProfile(w, r, ref, models.ProfileUpdate{ContactEmail: email})
}

func (h *Handler) UpdateDisplayName(w http.ResponseWriter, r *http.Request) error {
	ref, err := targetRef(r)
	if err != nil {
		return err
	}
	name := optionalField(r, "displayName")
	if name == nil {
		return fmt.Errorf("%w: displayName required", common.ErrorValidation)
	}
	return h.updateProfile(w, r, ref, models.ProfileUpdate{DisplayName: name})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, ref services.UserRef, upd models.ProfileUpdate) error {
	u, err := h.users.UpdateProfile(r.Context(), identityFrom(r.Context()), ref, upd)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, models.ToFrontendUser(u))
	return nil
}

type editUserRequest struct {
	ID           string  `json:"uuid"`
	DisplayName  string  `json:"displayName"`
	ContactEmail string  `json:"contactEmail"`
	AvatarID     *string `json:"avatarId"`
}

func (h *Handler) EditUser(w http.ResponseWriter, r *http.Request) error {
	var req editUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.ID == "" {
		return fmt.Errorf("%w: uuid required", common.ErrorValidation)
	}

	u, err := h.users.EditUser(r.Context(), identityFrom(r.Context()), req.ID, services.EditUser{
		DisplayName:  req.DisplayName,
		ContactEmail: req.ContactEmail,
		AvatarID:     req.AvatarID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, models.ToFrontendUser(u))
	return nil
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	ref, err := targetRef(r)
	if err != nil {
		return err
	}
	next := r.PostFormValue("newPassword")
	if next == "" {
		return fmt.Errorf("%w: newPassword required", common.ErrorValidation)
	}

	err = h.users.ChangePassword(r.Context(), identityFrom(r.Context()), ref, r.PostFormValue("oldPassword"), next)
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) error {
	ref, err := targetRef(r)
	if err != nil {
		return err
	}
	return h.users.Delete(r.Context(), identityFrom(r.Context()), ref)
}

func (h *Handler) AdminUserList(w http.ResponseWriter, r *http.Request) error {
	p, err := pagination(r)
	if err != nil {
		return err
	}
	list, err := h.users.List(r.Context(), identityFrom(r.Context()), p)
	if err != nil {
		return err
	}

	out := make([]*models.FrontendUser, 0, len(list))
	for _, u := range list {
		out = append(out, models.ToFrontendUser(u))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *Handler) SimpleList(w http.ResponseWriter, r *http.Request) error {
	p, err := pagination(r)
	if err != nil {
		return err
	}
	list, err := h.users.SimpleList(r.Context(), identityFrom(r.Context()), p)
	if err != nil {
		return err
	}

	out := make([]*models.SimpleUser, 0, len(list))
	for _, u := range list {
		out = append(out, models.ToSimpleUser(u))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

type helloResponse struct {
	Message string `json:"message"`
}

func (h *Handler) SayHello(w http.ResponseWriter, r *http.Request) error {
	if err := authz.Authorize(authz.OpHello, identityFrom(r.Context()), ""); err != nil {
		return err
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "World"
	}
	writeJSON(w, http.StatusOK, helloResponse{Message: fmt.Sprintf("Hello, %s!", name)})
	return nil
}

// targetRef reads the optional uuid/loginName selector of a form post.
func targetRef(r *http.Request) (services.UserRef, error) {
	if err := parseForm(r); err != nil {
		return services.UserRef{}, err
	}
	return services.UserRef{ID: r.PostFormValue("uuid"), LoginName: r.PostFormValue("loginName")}, nil
}

// optionalField returns nil when the form does not carry key at all, so an
// absent field is told apart from an empty one.
func optionalField(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostFormValue(key)
	return &v
}

func pagination(r *http.Request) (models.Pagination, error) {
	var p models.Pagination
	q := r.URL.Query()
	for key, dst := range map[string]*int{"offset": &p.Offset, "limit": &p.Limit} {
		s := q.Get(key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return models.Pagination{}, fmt.Errorf("%w: %s must be a non-negative integer", common.ErrorValidation, key)
		}
		*dst = n
	}
	return p.Normalized(), nil
}
