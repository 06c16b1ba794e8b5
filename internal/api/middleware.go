package api

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

type contextKey string

const clientContextKey contextKey = "api_client"

// ClientFromContext returns the authenticated admin client, or nil
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, _ := ctx.Value(clientContextKey).(*models.ApiClient)
	return client
}

// ContextWithClient attaches the authenticated admin client
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// AuthMiddleware guards the admin routes with static API keys.
// Keys are indexed by digest so lookups never compare raw secrets.
type AuthMiddleware struct {
	byDigest map[[sha256.Size]byte]*models.ApiClient
}

// NewAuthMiddleware indexes clients by key. With no clients every admin
// request is refused.
func NewAuthMiddleware(clients []models.ApiClient) *AuthMiddleware {
	m := &AuthMiddleware{byDigest: make(map[[sha256.Size]byte]*models.ApiClient, len(clients))}
	for i := range clients {
		c := clients[i]
		if c.ApiKey == "" {
			continue
		}
		m.byDigest[sha256.Sum256([]byte(c.ApiKey))] = &c
	}
	return m
}

// Authenticate accepts "Authorization: Bearer <key>", a bare key in
// Authorization, or X-API-Key
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFromRequest(r)
		if key == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "an admin api key is required")
			return
		}

		client, ok := m.byDigest[sha256.Sum256([]byte(key))]
		if !ok {
			slog.Warn("rejected admin api key", "key_prefix", maskKey(key), "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "unauthenticated", "the provided api key is not valid")
			return
		}

		slog.Debug("admin request", "client", client.Name, "key_prefix", client.MaskedApiKey(), "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ContextWithClient(r.Context(), client)))
	})
}

// RequirePermission refuses clients lacking permission
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientFromContext(r.Context())
			switch {
			case client == nil:
				respondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			case !client.HasPermission(permission):
				slog.Warn("admin permission denied", "client", client.Name, "required", permission)
				respondError(w, http.StatusForbidden, "permission_denied", "missing permission "+permission)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func apiKeyFromRequest(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if scheme, key, found := strings.Cut(auth, " "); found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(key)
		}
		return auth
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}
