// Package middleware holds resolver middleware shared by query entry points.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/rpattn/nodequery/internal/resolve"
	"github.com/rpattn/nodequery/internal/schema"
)

// ResolverLogger logs the execution time of each field resolver call.
// Calls are logged at debug level, failed calls at warn level.
func ResolverLogger(logger *slog.Logger) resolve.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(typeName, fieldName string, next schema.ResolveFunc) schema.ResolveFunc {
		return func(ctx context.Context, p schema.ResolveParams) (any, error) {
			start := time.Now()
			res, err := next(ctx, p)
			duration := float64(time.Since(start).Microseconds()) / 1000 // ms

			if err != nil {
				logger.WarnContext(ctx, "resolver failed",
					"field", typeName+"."+fieldName,
					"duration_ms", duration,
					"error", err,
				)
				return res, err
			}
			logger.DebugContext(ctx, "resolver finished",
				"field", typeName+"."+fieldName,
				"duration_ms", duration,
			)
			return res, nil
		}
	}
}
