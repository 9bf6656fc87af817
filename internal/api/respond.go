package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch efberr.KindOf(err) {
	case efberr.InvalidInput:
		return http.StatusBadRequest
	case efberr.NotFound:
		return http.StatusNotFound
	case efberr.FetchFailed, efberr.Stale:
		return http.StatusBadGateway
	case efberr.StorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("api: unhandled error", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: efberr.KindOf(err).String()})
}

func badRequest(op, msg string) error {
	return efberr.New(efberr.InvalidInput, op, msg)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return efberr.Wrap(efberr.InvalidInput, "api: decode body", err)
	}
	return nil
}

// floatParam parses a required float query parameter.
func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, badRequest("api", name+" is required")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("api", name+" must be a number")
	}
	return f, nil
}

// intParam parses an optional positive integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest("api", name+" must be a positive integer")
	}
	return n, nil
}
