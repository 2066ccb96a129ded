package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/imtdakar/imtbot/internal/api"
)

type contextKey string

const ClientKey contextKey = "client"

// ClientHeader carries the authenticated client name back to outer
// middleware, which only sees the original request context.
const ClientHeader = "X-Imtbot-Client"

var ErrInvalidAPIKey = errors.New("invalid api key")

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			client, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set(ClientHeader, client)
			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClient(ctx context.Context) string {
	client, _ := ctx.Value(ClientKey).(string)
	return client
}

func clientName(r *http.Request) string {
	if client := GetClient(r.Context()); client != "" {
		return client
	}
	return r.Header.Get(ClientHeader)
}

// StaticKeys validates tokens against a fixed set of "client:key" pairs.
// An entry without a colon belongs to the client "default".
type StaticKeys struct {
	keys map[string]string // key -> client
}

func NewStaticKeys(entries []string) *StaticKeys {
	s := &StaticKeys{keys: make(map[string]string)}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		client, key, ok := strings.Cut(e, ":")
		if !ok {
			key = e
			client = "default"
		}
		s.keys[key] = client
	}
	return s
}

func (s *StaticKeys) Len() int {
	return len(s.keys)
}

func (s *StaticKeys) ValidateAPIKey(_ context.Context, token string) (string, error) {
	for key, client := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
			return client, nil
		}
	}
	return "", ErrInvalidAPIKey
}
