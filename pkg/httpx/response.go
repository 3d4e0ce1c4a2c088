package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxJSONBody caps request bodies accepted by DecodeJSON.
const MaxJSONBody = 1 << 20

// ErrorEnvelope is the body of every non-2xx JSON response.
type ErrorEnvelope struct {
	Path      string    `json:"path"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteJSON writes v with the given status and disables caching.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the uniform error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, code int, message string) {
	WriteJSON(w, code, ErrorEnvelope{
		Path:      r.URL.Path,
		Message:   message,
		Status:    code,
		Timestamp: time.Now().UTC(),
	})
}

// NoCache marks the response as uncacheable. Token responses require it.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// DecodeJSON strictly decodes a single JSON object from the request body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("httpx: decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("httpx: body must contain a single JSON object")
	}
	return nil
}
