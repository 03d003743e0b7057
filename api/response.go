package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

const messageSuccess = "success"

// Envelope wraps every JSON response body. Code mirrors the HTTP status.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func encode(status int, message string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Code: status, Message: message, Data: data})
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, message string, data any) {
	body, err := encode(status, message, data)
	if err != nil {
		log.Error("failed to encode response", zap.Int("status", status), zap.Error(err))
		body, _ = encode(http.StatusInternalServerError, "failed to encode response", nil)
		status = http.StatusInternalServerError
	}
	writeBody(w, status, body)
}

func writeOK(w http.ResponseWriter, log logger.Logger, data any) {
	writeJSON(w, log, http.StatusOK, messageSuccess, data)
}

func writeError(w http.ResponseWriter, log logger.Logger, status int, message string) {
	writeJSON(w, log, status, message, nil)
}
