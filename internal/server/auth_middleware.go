package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zeusync/dodgesim/internal/core/observability/log"
)

// authorize rejects requests that do not carry Config.Token, either as a
// bearer token or as the "token" query parameter. An empty token disables
// the check.
func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	if s.config.Token == "" {
		return next
	}
	want := []byte(s.config.Token)

	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			got = strings.TrimPrefix(h, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			s.logger.Warn("Unauthorized connection attempt", log.String("remote_addr", r.RemoteAddr))
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
