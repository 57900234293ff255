package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/troublesprouter/freight-crm/internal/entity"
)

// Identity headers set by the authenticating gateway in front of this service.
const (
	HeaderRepID          = "X-Rep-Id"
	HeaderOrganizationID = "X-Organization-Id"
	HeaderRole           = "X-Rep-Role"
)

type sessionKey struct{}

// Session puts the caller's identity on the request context and rejects
// requests that arrive without one.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := entity.Session{
			RepID:          strings.TrimSpace(r.Header.Get(HeaderRepID)),
			OrganizationID: strings.TrimSpace(r.Header.Get(HeaderOrganizationID)),
			Role:           entity.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole)))),
		}
		if !sess.Valid() {
			WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "missing session identity", nil)
			return
		}
		if sess.Role == "" {
			sess.Role = entity.RoleRep
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func WithSession(ctx context.Context, sess entity.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

func SessionFrom(ctx context.Context) (entity.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(entity.Session)
	return sess, ok
}
