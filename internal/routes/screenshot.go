package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"webshot/internal/classify"
	"webshot/internal/screenshot"

	"golang.org/x/xerrors"
)

type screenshotRequest struct {
	URL     string  `json:"url"`
	Options Options `json:"options"`
}

type screenshotResponse struct {
	screenshot.Outcome
	Timestamp string `json:"timestamp"`
}

// Screenshot captures one URL given as ?url= (GET) or a JSON body (POST).
// ?response=binary returns the image itself instead of JSON.
func Screenshot(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request screenshotRequest
		switch r.Method {
		case http.MethodPost:
			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				writeError(w, e.Mode(), classify.Wrap(classify.InvalidRequest, xerrors.Errorf("failed to read request body: %w", err)))
				return
			}
			if err := json.Unmarshal(body, &request); err != nil {
				writeError(w, e.Mode(), classify.Wrap(classify.InvalidRequest, xerrors.Errorf("invalid json: %w", err)))
				return
			}
		default:
			o, err := optionsFromQuery(r)
			if err != nil {
				writeError(w, e.Mode(), err)
				return
			}
			request = screenshotRequest{URL: r.URL.Query().Get("url"), Options: o}
		}

		if request.URL == "" {
			writeError(w, e.Mode(), classify.Wrap(classify.InvalidRequest, xerrors.New("url parameter is required")))
			return
		}

		outcome := e.Capture(r.Context(), request.URL, request.Options.capture())
		if !outcome.Success {
			writeJSON(w, outcome.Status, screenshotResponse{Outcome: outcome, Timestamp: timestamp()})
			return
		}

		if r.URL.Query().Get("response") == "binary" {
			w.Header().Set("Content-Type", outcome.Metadata.Format.ContentType())
			w.Header().Set("Content-Length", strconv.Itoa(len(outcome.Bytes)))
			w.Header().Set("Cache-Control", "public, max-age=3600")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(outcome.Bytes)
			return
		}

		writeJSON(w, http.StatusOK, screenshotResponse{Outcome: outcome, Timestamp: timestamp()})
	}
}
