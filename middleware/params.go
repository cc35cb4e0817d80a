package middleware

import (
	"fmt"

	"github.com/dmitrymomot/appserver/core/handler"
)

func paramError(cfg handler.Config, key string, err error) error {
	return fmt.Errorf("%w: %s.%s: %w", ErrInvalidParam, cfg.Name, key, err)
}
