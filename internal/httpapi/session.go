package httpapi

import (
	"context"
	"net/http"

	"climate-server/internal/db"
	"climate-server/internal/logging"
	"climate-server/internal/utils"
)

type SessionAcquirer interface {
	Acquire(ctx context.Context) (*db.Session, error)
}

// SessionHandlerFunc is a handler that runs on a request-scoped session.
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, sess *db.Session)

// WithSession acquires a session bound to the request context, hands it to h
// and releases it when h returns or panics.
func WithSession(sessions SessionAcquirer, h SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())

		sess, err := sessions.Acquire(r.Context())
		if err != nil {
			logger.Error("session acquire failed", "error", err)
			utils.WriteError(w, r, http.StatusInternalServerError, "database unavailable")
			return
		}
		defer func() {
			if err := sess.Release(); err != nil {
				logger.Error("session release failed", "error", err)
			}
		}()

		h(w, r, sess)
	}
}
