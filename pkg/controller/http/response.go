package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/usecase"
	"github.com/magpipe/recurra/pkg/utils/errutil"
)

const maxBodySize = 1 << 20

// errBadRequest marks malformed request bodies and parameters
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(errors.Join(errBadRequest, err), "failed to decode request body")
	}
	return nil
}

// statusOf maps use case errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrMemoryNotFound),
		errors.Is(err, usecase.ErrRuleNotFound),
		errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, errBadRequest),
		errors.Is(err, usecase.ErrInvalidRuleConfig),
		errors.Is(err, usecase.ErrInvalidAgentConfig),
		errors.Is(err, usecase.ErrInvalidQuery),
		errors.Is(err, usecase.ErrInvalidEvent):
		return http.StatusBadRequest

	case errors.Is(err, usecase.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	errutil.HandleHTTP(r.Context(), w, err, statusOf(err))
}

// queryLimit reads the optional positive "limit" query parameter
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, goerr.Wrap(errBadRequest, "limit must be a positive integer", goerr.V("limit", raw))
	}
	return n, nil
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
