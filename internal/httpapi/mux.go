package httpapi

import (
	"net/http"
)

func NewMux(sessions SessionAcquirer) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, sessions)
	return mux
}
