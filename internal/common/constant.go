package common

const (
	// SessionCookieName is the cookie carrying the signed session id.
	SessionCookieName = "GKSESSION"

	// CSRFHeaderName and CSRFParameterName are the names a client echoes the
	// anti-forgery token through. The header wins when both are present.
	CSRFHeaderName    = "X-CSRF-TOKEN"
	CSRFParameterName = "_csrf"
)
