package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"webshot/internal/classify"
	"webshot/internal/screenshot"

	"golang.org/x/xerrors"
)

type batchRequest struct {
	URLs    []string `json:"urls"`
	Options Options  `json:"options"`
}

type batchResponse struct {
	Success bool `json:"success"`
	*screenshot.BatchOutcome
	Timestamp string `json:"timestamp"`
}

func Batch(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, e.Mode(), classify.Wrap(classify.InvalidRequest, xerrors.Errorf("failed to read request body: %w", err)))
			return
		}

		var request batchRequest
		if err := json.Unmarshal(body, &request); err != nil {
			writeError(w, e.Mode(), classify.Wrap(classify.InvalidRequest, xerrors.Errorf("invalid json: %w", err)))
			return
		}

		outcome, err := e.CaptureBatch(r.Context(), request.URLs, request.Options.capture())
		if err != nil {
			writeError(w, e.Mode(), err)
			return
		}

		writeJSON(w, http.StatusOK, batchResponse{
			Success:      true,
			BatchOutcome: outcome,
			Timestamp:    timestamp(),
		})
	}
}
