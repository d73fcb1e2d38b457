package httpapi

import (
	"net/http"

	"climate-server/internal/db"
	"climate-server/internal/logging"
	"climate-server/internal/utils"
)

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request, sess *db.Session)
}

type healthcheckerImpl struct{}

func NewHealthchecker() healthchecker {
	return &healthcheckerImpl{}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	var ok int
	if err := sess.DB.Raw(`SELECT 1`).Scan(&ok).Error; err != nil || ok != 1 {
		logging.FromContext(r.Context()).Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, sessions SessionAcquirer) {
	healthchecker := NewHealthchecker()
	mux.HandleFunc("GET /healthz", WithSession(sessions, healthchecker.handleHealthz))
}
