package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// HeadersMiddleware sets the security headers for a JSON-only API. HSTS is
// sent over HTTPS outside development.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	hstsMaxAge := 31536000
	if cfg.IsDevelopment {
		hstsMaxAge = 0
	}

	return helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		HSTSMaxAge:            hstsMaxAge,
		ContentSecurityPolicy: contentSecurityPolicy(cfg.AllowedOrigins),
	})
}

func contentSecurityPolicy(origins []string) string {
	connectSrc := []string{"'self'"}
	for _, origin := range origins {
		if origin != "" && origin != "*" {
			connectSrc = append(connectSrc, origin)
		}
	}

	return "default-src 'none'; " +
		"connect-src " + strings.Join(connectSrc, " ") + "; " +
		"frame-ancestors 'none'; " +
		"base-uri 'none'; " +
		"form-action 'none'"
}
