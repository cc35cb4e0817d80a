package middleware

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/logger"
)

// Logging writes one structured record per request after the handler ran.
//
// Init params: level (debug, info, warn, error; default info),
// slow_threshold (duration; slower requests log at warn), log_headers
// (bool), sensitive_headers (comma separated, redacted when headers are
// logged; defaults to Authorization, Cookie and X-Api-Key).
type Logging struct {
	Logger               *slog.Logger
	Level                slog.Level
	SlowRequestThreshold time.Duration
	LogHeaders           bool
	SensitiveHeaders     []string
}

// Init implements handler.Initializer.
func (m *Logging) Init(cfg handler.Config) error {
	if m.Logger == nil {
		if cfg.App != nil {
			m.Logger = cfg.App.Logger()
		} else {
			m.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	}
	if v := cfg.Param("level"); v != "" {
		if err := m.Level.UnmarshalText([]byte(v)); err != nil {
			return paramError(cfg, "level", err)
		}
	}
	if v := cfg.Param("slow_threshold"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return paramError(cfg, "slow_threshold", err)
		}
		m.SlowRequestThreshold = d
	}
	if v := cfg.Param("log_headers"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return paramError(cfg, "log_headers", err)
		}
		m.LogHeaders = b
	}
	if v := cfg.Param("sensitive_headers"); v != "" {
		m.SensitiveHeaders = strings.Split(v, ",")
	}
	if len(m.SensitiveHeaders) == 0 {
		m.SensitiveHeaders = []string{"Authorization", "Cookie", "X-Api-Key"}
	}
	return nil
}

// Intercept implements handler.Interceptor.
func (m *Logging) Intercept(req *handler.Request, resp *handler.Response, chain handler.Chain) error {
	start := time.Now()
	err := chain.Next(req, resp)
	elapsed := time.Since(start)

	attrs := []slog.Attr{
		logger.Method(req.Method),
		logger.Path(req.URI),
		logger.StatusCode(resp.Status()),
		logger.Duration(elapsed),
		logger.ClientIP(req.RemoteAddr),
		logger.UserAgent(req.Header.Get("User-Agent")),
		logger.BytesOut(int64(len(resp.Body()))),
	}
	if id, ok := GetRequestID(req); ok {
		attrs = append(attrs, logger.RequestID(id))
	}
	if req.Forwarded() {
		attrs = append(attrs, slog.Bool("forwarded", true))
	}
	if m.LogHeaders {
		attrs = append(attrs, m.headerGroup(req))
	}

	level := m.Level
	msg := "request completed"
	switch {
	case err != nil:
		level = slog.LevelError
		msg = "request failed"
		attrs = append(attrs, logger.Error(err))
	case m.SlowRequestThreshold > 0 && elapsed > m.SlowRequestThreshold:
		level = max(level, slog.LevelWarn)
		msg = "slow request"
	}

	m.Logger.LogAttrs(req.Context(), level, msg, attrs...)
	return err
}

func (m *Logging) headerGroup(req *handler.Request) slog.Attr {
	attrs := make([]slog.Attr, 0, len(req.Header))
	for name, values := range req.Header {
		v := strings.Join(values, ", ")
		for _, s := range m.SensitiveHeaders {
			if strings.EqualFold(strings.TrimSpace(s), name) {
				v = "[REDACTED]"
				break
			}
		}
		attrs = append(attrs, slog.String(name, v))
	}
	return logger.Group("headers", attrs...)
}
