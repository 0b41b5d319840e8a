package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
)

// Origins used by local storefront development servers.
var devOrigins = map[string]bool{
	"http://localhost:5173": true,
	"http://localhost:5174": true,
	"http://127.0.0.1:5173": true,
	"http://127.0.0.1:5174": true,
}

// Hosting platforms whose preview deployments may call the API.
var hostedSuffixes = []string{".onrender.com", ".vercel.app"}

func corsOptions(frontendHost string) cors.Options {
	return cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return originAllowed(frontendHost, origin)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           600,
	}
}

// originAllowed reports whether a browser origin may call the API.
func originAllowed(frontendHost, origin string) bool {
	origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
	if origin == "" {
		return false
	}
	if fh := strings.TrimSuffix(strings.TrimSpace(frontendHost), "/"); fh != "" && strings.EqualFold(origin, fh) {
		return true
	}
	if devOrigins[origin] {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range hostedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
