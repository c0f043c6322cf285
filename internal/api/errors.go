package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/lox/miniquoter/internal/locator"
	"github.com/lox/miniquoter/internal/quote"
	"github.com/lox/miniquoter/internal/ratelimit"
)

// statusFor maps service errors to HTTP status codes and sets Retry-After
// for exhausted daily limits.
func statusFor(w http.ResponseWriter, err error) int {
	var limitErr *ratelimit.LimitError
	switch {
	case errors.As(err, &limitErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limitErr.ResetIn.Seconds()))))
		return http.StatusTooManyRequests
	case errors.Is(err, locator.ErrInvalidLocation), errors.Is(err, quote.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		log.Printf("api: %v", err)
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v before committing the status, so an unencodable value
// becomes a 500 rather than an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
		status = http.StatusInternalServerError
		buf.Reset()
		json.NewEncoder(&buf).Encode(map[string]string{"error": http.StatusText(status)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeJSONError(w http.ResponseWriter, err error) {
	status := statusFor(w, err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
