package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ignitionhq/ignition/pkg/httpapi"
)

// decodeJSON decodes the request body into dst, writing a 400 and returning
// false on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpapi.WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}
