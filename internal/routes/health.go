package routes

import (
	"net/http"
	"time"
)

const Version = "2.0.0"

// Probe reports the last browser availability check.
type Probe interface {
	BrowserAvailable() (available bool, checkedAt time.Time)
}

type healthResponse struct {
	Status           string   `json:"status"`
	Timestamp        string   `json:"timestamp"`
	Service          string   `json:"service"`
	Version          string   `json:"version"`
	Mode             string   `json:"mode"`
	Features         []string `json:"features"`
	Strategies       []string `json:"strategies"`
	BrowserAvailable *bool    `json:"browserAvailable,omitempty"`
	BrowserCheckedAt string   `json:"browserCheckedAt,omitempty"`
}

func Health(e Engine, p Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := healthResponse{
			Status:     "healthy",
			Timestamp:  timestamp(),
			Service:    "webshot",
			Version:    Version,
			Mode:       string(e.Mode()),
			Features:   []string{"single-screenshot", "batch-screenshots", "fallback-strategies", "inline-fallback"},
			Strategies: e.ListAvailableStrategies(),
		}
		if p != nil {
			if available, checkedAt := p.BrowserAvailable(); !checkedAt.IsZero() {
				response.BrowserAvailable = &available
				response.BrowserCheckedAt = checkedAt.UTC().Format(time.RFC3339)
			}
		}

		writeJSON(w, http.StatusOK, response)
	}
}

type strategiesResponse struct {
	Strategies []string `json:"strategies"`
}

func Strategies(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, strategiesResponse{
			Strategies: e.ListAvailableStrategies(),
		})
	}
}
