package utils

import (
	"encoding/json"
	"net/http"
)

// SendResponse writes a JSON response. Strings are wrapped in a message
// object; anything else is encoded as-is.
func SendResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	switch p := payload.(type) {
	case string:
		_ = json.NewEncoder(w).Encode(map[string]string{"message": p})
	default:
		_ = json.NewEncoder(w).Encode(p)
	}
}
