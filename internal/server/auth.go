package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"citizenportal/internal/engine/auth"
	"citizenportal/internal/staff"
)

type Principal struct {
	StaffID    string
	Email      string
	Role       string
	Department string
	Source     string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func principalFromRequest(ctx context.Context) (Principal, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.StaffID != "" {
		return p, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

// requirePermission checks the stored role, so a role change takes effect
// before outstanding tokens expire.
func requirePermission(ctx context.Context, a auth.Service, perm string) error {
	p, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	ok, err := a.StaffHasPermission(ctx, p.StaffID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{Permission: perm}
	}
	return nil
}

func authenticateJWT(s staff.Service, token string) (Principal, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		StaffID:    claims.Subject,
		Email:      claims.Email,
		Role:       claims.Role,
		Department: claims.Department,
		Source:     "jwt",
	}, nil
}

func authenticateAPIKey(ctx context.Context, s staff.Service, key string) (Principal, error) {
	u, err := s.AuthenticateAPIKey(ctx, key)
	if err != nil {
		return Principal{}, err
	}
	return Principal{StaffID: u.ID, Email: u.Email, Role: u.Role, Department: u.Department, Source: "api_key"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware guards the back-office routes; public intake and lookup pass through.
func newAuthMiddleware(basePath string, s staff.Service, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	staffPrefix := path.Join(basePath, "staff") + "/"
	loginPath := path.Join(basePath, "staff/login")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, staffPrefix) || req.URL.Path == loginPath {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKey := strings.TrimSpace(req.Header.Get("X-Api-Key"))

			var (
				principal Principal
				err       error
			)
			switch {
			case authz != "":
				token, ok := bearerToken(authz)
				if !ok {
					err = errors.New("malformed authorization header")
					break
				}
				principal, err = authenticateJWT(s, token)
			case apiKey != "":
				principal, err = authenticateAPIKey(req.Context(), s, apiKey)
			default:
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			if err != nil {
				logger.WithError(err).WithField("path", req.URL.Path).Debug("staff authentication failed")
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
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
