// Package server exposes the review engine over HTTP with huma on a chi
// router. Every error leaves as the {code, message, details} envelope.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"reviewapi/internal/authz"
	"reviewapi/internal/clients"
	"reviewapi/internal/engine"
	"reviewapi/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"not allowed to download this submission"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Review API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Review API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerDevAuth(group, cfg.Auth)
	registerSubmissions(group, cfg.Engine)
	registerOpportunities(group, cfg.Engine)
	registerApplications(group, cfg.Engine)
	registerRuns(group, cfg.Engine)
	registerScorecards(group, cfg.Engine)
	registerContactRequests(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerStreams(router, basePath, cfg.Engine, logger)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine and storage errors onto the envelope. The typed
// errors carry the taxonomy; anything unrecognized is an internal error.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var forbidden authz.ForbiddenError
	if errors.As(err, &forbidden) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	var bad engine.BadRequestError
	if errors.As(err, &bad) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	var conflict engine.ConflictError
	if errors.As(err, &conflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	var remoteMissing clients.NotFoundError
	if errors.As(err, &remoteMissing) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrDuplicate) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// registerDevAuth mints HS256 tokens for local development and tests.
func registerDevAuth(api huma.API, cfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Mint a development token",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if input.Body.Sub == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "sub is required", nil)
		}
		claims := jwtClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   input.Body.Sub,
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
			},
			Handle:  input.Body.Handle,
			Roles:   input.Body.Roles,
			Machine: input.Body.Machine,
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"token": token}}, nil
	})
}

// registerStreams mounts the raw chi routes that move file bytes: artifact
// bodies and the primary submission download. They live outside huma so the
// responses can stream.
func registerStreams(router chi.Router, basePath string, e engine.Engine, logger *zap.Logger) {
	router.Get(path.Join(basePath, "/submissions/{id}/artifacts/{name}"), func(w http.ResponseWriter, r *http.Request) {
		ident, authErr := identityFromContext(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		meta, obj, err := e.FetchArtifact(r.Context(), ident, chi.URLParam(r, "id"), chi.URLParam(r, "name"))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		defer obj.Body.Close()
		contentType := meta.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Name))
		if _, err := io.Copy(w, obj.Body); err != nil {
			logger.Warn("artifact stream interrupted", zap.String("key", obj.Key), zap.Error(err))
		}
	})

	router.Get(path.Join(basePath, "/submissions/{id}/download"), func(w http.ResponseWriter, r *http.Request) {
		ident, authErr := identityFromContext(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		obj, filename, err := e.DownloadSubmission(r.Context(), ident, chi.URLParam(r, "id"))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		defer obj.Body.Close()
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if _, err := io.Copy(w, obj.Body); err != nil {
			logger.Warn("download stream interrupted", zap.String("key", obj.Key), zap.Error(err))
		}
	})

	router.Put(path.Join(basePath, "/submissions/{id}/artifacts/{name}"), func(w http.ResponseWriter, r *http.Request) {
		ident, authErr := identityFromContext(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		internal := r.URL.Query().Get("internal") == "true"
		a, err := e.AddArtifact(r.Context(), ident, chi.URLParam(r, "id"), chi.URLParam(r, "name"),
			r.Header.Get("Content-Type"), internal, r.Body)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(a)
	})

	router.Put(path.Join(basePath, "/submissions/{id}/file"), func(w http.ResponseWriter, r *http.Request) {
		ident, authErr := identityFromContext(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		if err := e.PutPrimaryFile(r.Context(), ident, chi.URLParam(r, "id"), r.Body); err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}
