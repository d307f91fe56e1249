package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
)

// authenticate resolves the owner of the API token in the Authorization header.
// Requests without a token continue anonymously; an unknown token is rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.store.GetOwnerByAPIToken(r.Context(), token)
		if errors.Is(err, contract.ErrNotFound) {
			writeErr(w, "UNAUTHENTICATED", "invalid token", http.StatusUnauthorized)
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(core.WithCurrentUser(r.Context(), user)))
	})
}

// bearerToken accepts "token <t>" and "Bearer <t>".
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token)
	default:
		return ""
	}
}
