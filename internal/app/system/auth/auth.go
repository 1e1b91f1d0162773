// Package auth authenticates API requests with bearer JWTs and exposes the
// caller to handlers through the request context.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// User is the authenticated caller.
type User struct {
	ID          string
	Phone       string
	Role        string
	Permissions []string
}

// ObjectID parses the caller's id.
func (u *User) ObjectID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(u.ID)
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*User)
	return u, ok
}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// WithTestUser injects u into r. Tests use it to skip token handling.
func WithTestUser(r *http.Request, u *User) *http.Request {
	return r.WithContext(WithUser(r.Context(), u))
}

// AccountStatus is the stored state of the account behind a token.
type AccountStatus struct {
	Exists bool
	Active bool
	Role   string
	Phone  string
}

// AccountChecker loads the current state of a user account.
type AccountChecker interface {
	AccountStatus(ctx context.Context, userID string) (AccountStatus, error)
}

// Middleware authenticates requests.
type Middleware struct {
	issuer   *Issuer
	accounts AccountChecker
	log      *zap.Logger
}

// NewMiddleware wires the token issuer and account checker.
func NewMiddleware(issuer *Issuer, accounts AccountChecker, logger *zap.Logger) *Middleware {
	return &Middleware{issuer: issuer, accounts: accounts, log: logger}
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate requires a valid access token for a live, active account.
// Deleted accounts get 401 USER_DELETED and suspended ones 403
// USER_SUSPENDED, so the app can log out or explain.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			jsonresp.Fail(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := m.issuer.ParseAccess(token)
		if err != nil {
			jsonresp.Fail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		st, err := m.accounts.AccountStatus(r.Context(), claims.UserID)
		if err != nil {
			m.log.Error("account status lookup failed", zap.Error(err), zap.String("user_id", claims.UserID))
			jsonresp.Fail(w, http.StatusInternalServerError, "Authentication failed")
			return
		}
		if !st.Exists {
			jsonresp.FailCode(w, http.StatusUnauthorized, "User account no longer exists", "USER_DELETED")
			return
		}
		if !st.Active {
			jsonresp.FailCode(w, http.StatusForbidden, "User account has been suspended", "USER_SUSPENDED")
			return
		}

		u := &User{
			ID:          claims.UserID,
			Phone:       st.Phone,
			Role:        st.Role,
			Permissions: claims.Permissions,
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireRole ensures there is a user with one of the allowed roles in
// context (set by Authenticate).
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				jsonresp.Fail(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				jsonresp.Fail(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
