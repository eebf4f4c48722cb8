package utils

import (
	"encoding/json"
	"net/http"

	"canteen-backend/internal/models"
)

// Envelope is the uniform API response body
type Envelope struct {
	Success    bool              `json:"success"`
	Data       interface{}       `json:"data,omitempty"`
	Message    string            `json:"message,omitempty"`
	Error      string            `json:"error,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	StatusCode int               `json:"statusCode,omitempty"`
}

// JSON writes a success envelope
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

// Message writes a success envelope with only a message
func Message(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: true, Message: message})
}

// Error writes an error envelope from any error, classifying unknown errors
// as internal. Retryable errors get a Retry-After hint.
func Error(w http.ResponseWriter, err error) {
	appErr := models.AsAppError(err)
	status := appErr.StatusCode()

	w.Header().Set("Content-Type", "application/json")
	if appErr.Retryable() {
		w.Header().Set("Retry-After", "5")
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{
		Success:    false,
		Error:      appErr.Message,
		Fields:     appErr.Fields,
		StatusCode: status,
	})
}

// ErrorStatus writes an error envelope with an explicit status and message
func ErrorStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: false, Error: message, StatusCode: status})
}
