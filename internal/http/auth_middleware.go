package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/crimespot/backend/internal/domain"
	"github.com/crimespot/backend/internal/service/auth"
)

type authContextKey string

const contextKeyUser authContextKey = "crimespot-current-user"

const bearerChallenge = "Bearer"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request carries a valid bearer token for a live,
// enabled account before invoking the handler. The resolved user is attached
// to the request context read-only.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
// A missing or defective token yields 401 with a bearer challenge; a valid
// token for a disabled account yields 400, a deliberately distinct response.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, *domain.User, bool) {
	raw, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		r.unauthorized(w)
		return req.Context(), nil, false
	}
	user, err := r.auth.Authorize(req.Context(), raw)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			r.logger.Warn("token validation failed", "path", req.URL.Path)
			r.unauthorized(w)
			return req.Context(), nil, false
		}
		r.logger.Error("authorization lookup failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return req.Context(), nil, false
	}
	if user.Disabled {
		r.logger.Warn("disabled account rejected", "user_id", user.ID, "path", req.URL.Path)
		writeError(w, http.StatusBadRequest, "inactive account")
		return req.Context(), nil, false
	}
	ctx := context.WithValue(req.Context(), contextKeyUser, user)
	return ctx, user, true
}

func (r *Router) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", bearerChallenge)
	writeError(w, http.StatusUnauthorized, "could not validate credentials")
}

// userFromContext extracts the authenticated user from context.
func userFromContext(ctx context.Context) (*domain.User, bool) {
	value := ctx.Value(contextKeyUser)
	if value == nil {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	raw := strings.TrimSpace(parts[1])
	if raw == "" {
		return "", errors.New("empty bearer token")
	}
	return raw, nil
}
