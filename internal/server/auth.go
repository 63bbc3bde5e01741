package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
)

type AuthConfig struct {
	JWTSecret              string
	AllowLegacyActorHeader bool
	// EnableDevLogin registers POST /auth/dev/login as a public route.
	EnableDevLogin bool
	// CallbackSecret, when set, must arrive in X-Callback-Secret on payment callbacks.
	CallbackSecret string
	Logger         *slog.Logger
}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// publicRoutes are reachable without credentials. Paths are relative to the base path.
var publicRoutes = []struct {
	method string
	path   string
}{
	{http.MethodGet, "/health"},
	{http.MethodGet, "/openapi.json"},
	{http.MethodGet, "/camps"},
	{http.MethodGet, "/camps/{camp_id}"},
	{http.MethodGet, "/feedback"},
	{http.MethodPost, "/payments/callback"},
}

const devLoginPath = "/auth/dev/login"

// isPublicRoute reports whether route needs no credentials. The dev login
// route only counts when it is enabled.
func isPublicRoute(basePath, method, route string, devLogin bool) bool {
	rel := strings.TrimPrefix(route, strings.TrimRight(basePath, "/"))
	if devLogin && strings.EqualFold(method, http.MethodPost) && matchRoute(devLoginPath, rel) {
		return true
	}
	for _, p := range publicRoutes {
		if strings.EqualFold(p.method, method) && matchRoute(p.path, rel) {
			return true
		}
	}
	return false
}

// matchRoute compares a route template with a concrete or templated path.
func matchRoute(template, p string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(p, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if strings.HasPrefix(want[i], "{") || want[i] == got[i] {
			continue
		}
		return false
	}
	return true
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

func authenticateJWT(token, secret string) (auth.Identity, error) {
	if strings.TrimSpace(secret) == "" {
		return auth.Identity{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return auth.Identity{}, err
	}
	if !parsed.Valid {
		return auth.Identity{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return auth.Identity{}, errors.New("subject claim required")
	}
	return auth.Identity{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  auth.ParseRole(claims.Role),
	}, nil
}

// SignToken mints an HS256 token for id valid for ttl.
func SignToken(secret string, id auth.Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: id.Email,
		Name:  id.Name,
		Role:  string(id.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			legacyActor := strings.TrimSpace(req.Header.Get("X-Actor-Id"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials", nil))
					return
				}
				id, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), id)))
				return
			}

			if legacyActor != "" && cfg.AllowLegacyActorHeader {
				cfg.logger().Warn("using unauthenticated X-Actor-Id header", "actor_id", legacyActor)
				id := auth.Identity{
					ID:    legacyActor,
					Email: strings.TrimSpace(req.Header.Get("X-Actor-Email")),
					Name:  strings.TrimSpace(req.Header.Get("X-Actor-Name")),
					Role:  auth.ParseRole(req.Header.Get("X-Actor-Role")),
				}
				next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), id)))
				return
			}

			if isPublicRoute(basePath, req.Method, req.URL.Path, cfg.EnableDevLogin) {
				next.ServeHTTP(w, req)
				return
			}
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil))
		})
	}
}

func identityFromContext(ctx context.Context) (auth.Identity, huma.StatusError) {
	if id, ok := auth.FromContext(ctx); ok {
		return id, nil
	}
	return auth.Identity{}, newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
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

type WhoAmIResponse struct {
	ID    string    `json:"id"`
	Email string    `json:"email,omitempty"`
	Name  string    `json:"name,omitempty"`
	Role  auth.Role `json:"role"`
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current identity",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		id, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{ID: id.ID, Email: id.Email, Name: id.Name, Role: id.Role}}, nil
	})
}

type DevLoginRequest struct {
	ID    string `json:"id" minLength:"1"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty" enum:"participant,organizer"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func registerDevAuth(api huma.API, cfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        devLoginPath,
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.ID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "BAD_REQUEST", "id is required", nil)
		}
		token, err := SignToken(cfg.JWTSecret, auth.Identity{
			ID:    strings.TrimSpace(input.Body.ID),
			Email: input.Body.Email,
			Name:  input.Body.Name,
			Role:  auth.ParseRole(input.Body.Role),
		}, 0)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
