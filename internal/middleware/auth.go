package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Kevin-ecometrics/vortice/internal/auth"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID int64
	Role   auth.StaffRole
	Email  string
	Name   string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}

// StaffAuth verifies the bearer token and checks the staff account is still
// active. Admin-only routes pass adminOnly=true; waiters are accepted
// everywhere else, and admins can do anything a waiter can.
func StaffAuth(db *pgxpool.Pool, jwtSecret string, adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			if claims.Role != auth.RoleAdmin && claims.Role != auth.RoleWaiter {
				writeAuthError(w, http.StatusForbidden, "Staff access required")
				return
			}
			if adminOnly && claims.Role != auth.RoleAdmin {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}

			var active bool
			err = db.QueryRow(r.Context(),
				`select is_active from staff_users where id = $1 and role = $2`,
				claims.UserID, string(claims.Role)).Scan(&active)
			if err != nil || !active {
				writeAuthError(w, http.StatusForbidden, "Staff account is disabled")
				return
			}

			authCtx := &AuthContext{
				UserID: claims.UserID,
				Role:   claims.Role,
				Email:  claims.Email,
				Name:   claims.Name,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}
