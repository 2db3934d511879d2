package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/observability"
)

// Middleware creates pipeline request middleware from an AuthChain and an
// optional RateLimiter. It checks the bypass list, runs authentication,
// stores the identity on the request, and optionally enforces rate
// limits. Rejections short-circuit the pipeline with an HTML response.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassPaths []string) api.RequestMiddleware {
	bypass := make(map[string]bool, len(bypassPaths))
	for _, p := range bypassPaths {
		bypass[p] = true
	}

	return func(ctx context.Context, req *api.Request) (api.Response, error) {
		if bypass[req.Path] {
			return nil, nil
		}

		result := chain.Authenticate(ctx, req)

		if result.Decision == No {
			slog.Warn("authentication failed",
				"path", req.Path,
				"remote_addr", req.RemoteAddr,
				"error", result.Err,
			)
			return reject(http.StatusUnauthorized, "authentication required"), nil
		}

		if result.Decision != Yes || result.Identity == nil {
			return reject(http.StatusUnauthorized, "authentication required"), nil
		}

		if result.Identity.Subject == "" {
			slog.Error("authenticator returned identity with empty subject")
			return reject(http.StatusInternalServerError, "internal authentication error"), nil
		}

		slog.Debug("authentication succeeded",
			"subject", result.Identity.Subject,
			"path", req.Path,
			"remote_addr", req.RemoteAddr,
		)

		if limiter != nil {
			if err := limiter.Allow(ctx, result.Identity); err != nil {
				slog.Warn("rate limit exceeded",
					"subject", result.Identity.Subject,
					"tier", result.Identity.ServiceTier,
				)
				observability.RateLimitRejectedTotal.WithLabelValues(tierOf(result.Identity)).Inc()
				resp := reject(http.StatusTooManyRequests, "rate limit exceeded")
				resp.Header.Set("Retry-After", "60")
				return resp, nil
			}
		}

		req.Set(IdentityKey, result.Identity)
		return nil, nil
	}
}

func reject(status int, message string) *api.HTTPResponse {
	return api.HTML("<h3>"+message+"</h3>", status)
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
