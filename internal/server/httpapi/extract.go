package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

// maxBodyBytes bounds request bodies read by the JSON decoders.
const maxBodyBytes = 1 << 20

// Credentials are the login name and password a login request carries.
type Credentials struct {
	LoginName string `json:"loginName"`
	Password  string `json:"password"`
}

// Extractor pulls credentials out of a login request.
type Extractor interface {
	Extract(r *http.Request) (Credentials, error)
}

var errNoCredentials = fmt.Errorf("%w: loginName and password required", common.ErrorValidation)

// FormExtractor reads urlencoded or multipart fields. "username" is
// accepted in place of "loginName".
type FormExtractor struct{}

func (FormExtractor) Extract(r *http.Request) (Credentials, error) {
	if err := parseForm(r); err != nil {
		return Credentials{}, err
	}
	c := Credentials{LoginName: r.PostFormValue("loginName"), Password: r.PostFormValue("password")}
	if c.LoginName == "" {
		c.LoginName = r.PostFormValue("username")
	}
	if c.LoginName == "" || c.Password == "" {
		return Credentials{}, errNoCredentials
	}
	return c, nil
}

// JSONExtractor reads {"loginName": ..., "password": ...}.
type JSONExtractor struct{}

func (JSONExtractor) Extract(r *http.Request) (Credentials, error) {
	if !isJSON(r) {
		return Credentials{}, errNoCredentials
	}
	var c Credentials
	if err := decodeJSON(r, &c); err != nil {
		return Credentials{}, err
	}
	if c.LoginName == "" || c.Password == "" {
		return Credentials{}, errNoCredentials
	}
	return c, nil
}

// ChainExtractor returns the first successful extraction. JSON bodies are
// only offered to JSON-capable extractors once, since the body is consumed.
type ChainExtractor []Extractor

func (c ChainExtractor) Extract(r *http.Request) (Credentials, error) {
	err := errNoCredentials
	for _, e := range c {
		creds, xerr := e.Extract(r)
		if xerr == nil {
			return creds, nil
		}
		err = xerr
	}
	return Credentials{}, err
}

// DefaultExtractor accepts JSON bodies and form posts.
func DefaultExtractor() Extractor {
	return ChainExtractor{JSONExtractor{}, FormExtractor{}}
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func parseForm(r *http.Request) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("%w: malformed form body", common.ErrorValidation)
	}
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body", common.ErrorValidation)
	}
	return nil
}
