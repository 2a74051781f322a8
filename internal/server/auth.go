package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"reviewapi/internal/authz"
)

type AuthConfig struct {
	JWTSecret string
	// M2MSubjects are token subjects treated as machine callers even when
	// the token lacks a machine claim.
	M2MSubjects []string
}

type identityKey struct{}

func withIdentity(ctx context.Context, id authz.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFromContext(ctx context.Context) (authz.Identity, huma.StatusError) {
	id, ok := ctx.Value(identityKey{}).(authz.Identity)
	if !ok || id.UserID == "" {
		return authz.Identity{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	return id, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Handle  string   `json:"handle,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	Machine bool     `json:"machine,omitempty"`
}

func (c AuthConfig) isM2MSubject(sub string) bool {
	for _, s := range c.M2MSubjects {
		if s == sub {
			return true
		}
	}
	return false
}

func (c AuthConfig) authenticate(token string) (authz.Identity, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return authz.Identity{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(c.JWTSecret), nil
	})
	if err != nil {
		return authz.Identity{}, err
	}
	if !parsed.Valid {
		return authz.Identity{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return authz.Identity{}, errors.New("subject claim required")
	}
	return authz.Identity{
		UserID:    claims.Subject,
		Handle:    claims.Handle,
		Roles:     claims.Roles,
		IsMachine: claims.Machine || c.isM2MSubject(claims.Subject),
	}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	open := map[string]struct{}{
		path.Join(basePath, "health"):         {},
		path.Join(basePath, "auth/dev/login"): {},
		path.Join(basePath, "openapi.json"):   {},
		"/docs":                               {},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if _, ok := open[req.URL.Path]; ok {
				next.ServeHTTP(w, req)
				return
			}
			header := strings.TrimSpace(req.Header.Get("Authorization"))
			token, ok := bearerToken(header)
			if header != "" && !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			if token == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			ident, err := cfg.authenticate(token)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withIdentity(req.Context(), ident)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
