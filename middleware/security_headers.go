package middleware

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/dmitrymomot/appserver/core/handler"
)

// SecurityHeadersConfig lists the headers SecurityHeaders sets. Empty
// values are skipped.
type SecurityHeadersConfig struct {
	ContentTypeOptions        string
	FrameOptions              string
	XSSProtection             string
	StrictTransportSecurity   string
	ContentSecurityPolicy     string
	ReferrerPolicy            string
	PermissionsPolicy         string
	CrossOriginOpenerPolicy   string
	CrossOriginEmbedderPolicy string
	CrossOriginResourcePolicy string

	// CustomHeaders are set after the standard ones and may override them.
	CustomHeaders map[string]string

	// IsDevelopment drops HSTS.
	IsDevelopment bool
}

// Predefined configurations, selected with the "preset" init param.
var (
	// StrictSecurity blocks framing, external resources and inline content.
	StrictSecurity = SecurityHeadersConfig{
		ContentTypeOptions:        "nosniff",
		FrameOptions:              "DENY",
		XSSProtection:             "1; mode=block",
		StrictTransportSecurity:   "max-age=63072000; includeSubDomains; preload",
		ContentSecurityPolicy:     "default-src 'none'; script-src 'self'; style-src 'self'; img-src 'self'; font-src 'self'; connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'",
		ReferrerPolicy:            "no-referrer",
		PermissionsPolicy:         "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginResourcePolicy: "same-origin",
	}

	// BalancedSecurity suits most applications.
	BalancedSecurity = SecurityHeadersConfig{
		ContentTypeOptions:        "nosniff",
		FrameOptions:              "SAMEORIGIN",
		XSSProtection:             "1; mode=block",
		StrictTransportSecurity:   "max-age=31536000; includeSubDomains",
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' data:",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		PermissionsPolicy:         "geolocation=(), microphone=(), camera=()",
		CrossOriginOpenerPolicy:   "same-origin-allow-popups",
		CrossOriginResourcePolicy: "cross-origin",
	}

	// RelaxedSecurity keeps only the headers that never break pages.
	RelaxedSecurity = SecurityHeadersConfig{
		ContentTypeOptions: "nosniff",
		XSSProtection:      "1; mode=block",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}

	// DevelopmentSecurity is for local development only.
	DevelopmentSecurity = SecurityHeadersConfig{
		ContentTypeOptions: "nosniff",
		XSSProtection:      "1; mode=block",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      true,
	}
)

var securityPresets = map[string]SecurityHeadersConfig{
	"strict":      StrictSecurity,
	"balanced":    BalancedSecurity,
	"relaxed":     RelaxedSecurity,
	"development": DevelopmentSecurity,
}

// SecurityHeaders adds protective response headers to every response.
//
// Init params: preset (strict, balanced, relaxed, development; default
// balanced), development (bool), and "header.<Name>" for custom headers.
type SecurityHeaders struct {
	Config SecurityHeadersConfig

	headers [][2]string
}

// Init implements handler.Initializer.
func (m *SecurityHeaders) Init(cfg handler.Config) error {
	preset := strings.ToLower(cfg.Param("preset"))
	if preset == "" {
		preset = "balanced"
	}
	base, ok := securityPresets[preset]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}
	base.CustomHeaders = maps.Clone(base.CustomHeaders)

	if v := cfg.Param("development"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return paramError(cfg, "development", err)
		}
		base.IsDevelopment = dev
	}
	for k, v := range cfg.Params {
		name, ok := strings.CutPrefix(k, "header.")
		if !ok || name == "" {
			continue
		}
		if base.CustomHeaders == nil {
			base.CustomHeaders = make(map[string]string)
		}
		base.CustomHeaders[name] = v
	}

	m.Config = base
	m.headers = m.Config.list()
	return nil
}

// Intercept implements handler.Interceptor.
func (m *SecurityHeaders) Intercept(req *handler.Request, resp *handler.Response, chain handler.Chain) error {
	headers := m.headers
	if headers == nil {
		headers = m.Config.list()
	}
	h := resp.Header()
	for _, kv := range headers {
		h.Set(kv[0], kv[1])
	}
	return chain.Next(req, resp)
}

func (c SecurityHeadersConfig) list() [][2]string {
	hsts := c.StrictTransportSecurity
	if c.IsDevelopment {
		hsts = ""
	}
	std := [][2]string{
		{"X-Content-Type-Options", c.ContentTypeOptions},
		{"X-Frame-Options", c.FrameOptions},
		{"X-XSS-Protection", c.XSSProtection},
		{"Strict-Transport-Security", hsts},
		{"Content-Security-Policy", c.ContentSecurityPolicy},
		{"Referrer-Policy", c.ReferrerPolicy},
		{"Permissions-Policy", c.PermissionsPolicy},
		{"Cross-Origin-Opener-Policy", c.CrossOriginOpenerPolicy},
		{"Cross-Origin-Embedder-Policy", c.CrossOriginEmbedderPolicy},
		{"Cross-Origin-Resource-Policy", c.CrossOriginResourcePolicy},
	}
	out := make([][2]string, 0, len(std)+len(c.CustomHeaders))
	for _, kv := range std {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	for k, v := range c.CustomHeaders {
		out = append(out, [2]string{k, v})
	}
	return out
}
