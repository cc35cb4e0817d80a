package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/dmitrymomot/appserver/core/handler"
)

// BasicAuth vetoes requests without valid HTTP Basic credentials: the
// handler is not run and the response becomes 401 with a challenge.
//
// Init params: realm (default "Restricted"), users (comma separated
// user:password pairs, required).
type BasicAuth struct {
	Realm string

	// users maps a user name to the SHA-256 of its password.
	users map[string][32]byte
}

// Init implements handler.Initializer.
func (m *BasicAuth) Init(cfg handler.Config) error {
	m.Realm = cfg.Param("realm")
	if m.Realm == "" {
		m.Realm = "Restricted"
	}

	m.users = make(map[string][32]byte)
	for _, pair := range strings.Split(cfg.Param("users"), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, pass, ok := strings.Cut(pair, ":")
		if !ok || user == "" {
			return paramError(cfg, "users", ErrMalformedUsers)
		}
		m.users[user] = sha256.Sum256([]byte(pass))
	}
	if len(m.users) == 0 {
		return paramError(cfg, "users", ErrNoCredentials)
	}
	return nil
}

// Intercept implements handler.Interceptor.
func (m *BasicAuth) Intercept(req *handler.Request, resp *handler.Response, chain handler.Chain) error {
	if user, ok := m.authenticate(req.Header.Get("Authorization")); ok {
		req.SetAttr(UserAttr, user)
		return chain.Next(req, resp)
	}

	resp.SetStatus(http.StatusUnauthorized)
	resp.SetContentType("text/plain")
	resp.Header().Set("WWW-Authenticate", `Basic realm="`+strings.ReplaceAll(m.Realm, `"`, "")+`"`)
	return resp.WriteString(http.StatusText(http.StatusUnauthorized))
}

// UserAttr is the request attribute holding the authenticated user name.
const UserAttr = "middleware.user"

func (m *BasicAuth) authenticate(header string) (string, bool) {
	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", false
	}
	want, known := m.users[user]
	got := sha256.Sum256([]byte(pass))
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 || !known {
		return "", false
	}
	return user, true
}
