package admin

import (
	"encoding/json"
	"net/http"

	"coordinator-core/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    core.Code `json:"code"`
	Message string    `json:"message"`
}

func writeError(w http.ResponseWriter, err *core.CoordError) {
	writeJSON(w, core.StatusFor(err.Code), errorBody{Code: err.Code, Message: err.Message})
}
