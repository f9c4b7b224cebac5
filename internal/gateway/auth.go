package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"toursync/internal/config"
)

var (
	errMissingKey = errors.New("missing api key")
	errInvalidKey = errors.New("invalid api key")
)

type clientCtxKey struct{}

// clientName returns the authenticated client's name, if any.
func clientName(ctx context.Context) string {
	name, _ := ctx.Value(clientCtxKey{}).(string)
	return name
}

// HTTPAuth checks the API key header against the configured clients.
type HTTPAuth struct {
	header  string
	clients []config.APIClientKey
}

func NewHTTPAuth(cfg config.GatewayConfig) *HTTPAuth {
	header := strings.TrimSpace(cfg.HeaderAPIKey)
	if header == "" {
		header = config.DefaultAPIKeyHeader
	}
	return &HTTPAuth{header: header, clients: cfg.APIKeys}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, err := a.authenticate(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, Response{Error: &ErrorBody{Kind: "unauthorized", Message: err.Error()}})
			return
		}
		ctx := context.WithValue(r.Context(), clientCtxKey{}, client.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *HTTPAuth) authenticate(r *http.Request) (config.APIClientKey, error) {
	key := strings.TrimSpace(r.Header.Get(a.header))
	if key == "" && r.URL.Path == eventsPath {
		// Browsers cannot set headers on a WebSocket handshake.
		key = strings.TrimSpace(r.URL.Query().Get("api_key"))
	}
	if key == "" {
		return config.APIClientKey{}, errMissingKey
	}

	for i, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(c.Key), []byte(key)) == 1 {
			if c.Name == "" {
				c.Name = fmt.Sprintf("client-%d", i+1)
			}
			return c, nil
		}
	}
	return config.APIClientKey{}, errInvalidKey
}

// rateLimitKey prefers the authenticated client, then the remote host.
func rateLimitKey(r *http.Request) string {
	if name := clientName(r.Context()); name != "" {
		return "client:" + name
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return "ip:" + host
	}
	return "unknown"
}
