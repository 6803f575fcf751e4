// Package response writes the JSON envelope shared by every endpoint:
// {"error": string|null, "success": bool, "data": any}.
package response

import (
	"net/http"

	"github.com/goccy/go-json"
)

const (
	MsgInternal       = "Internal Server Error"
	MsgNotFound       = "Resource not found."
	MsgAccessDenied   = "Access Denied."
	MsgSessionExpired = "Session Expired. Please Login Again."
)

type Envelope struct {
	Error   *string     `json:"error"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// Message is the data payload of endpoints that only report an outcome.
type Message struct {
	Message string `json:"message"`
}

// JSON writes a successful envelope around data.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, Envelope{Success: true, Data: data})
}

// OK writes a 200 envelope carrying a message.
func OK(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, Message{Message: msg})
}

// Error writes a failed envelope; msg is shown to the client as is.
func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, Envelope{Error: &msg})
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
