package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/helium-monitor/internal/monitor"
)

// JobRunner reports and triggers job refreshes. *monitor.Engine implements it.
type JobRunner interface {
	Status() []monitor.JobStatus
	RefreshNow(ctx context.Context, name string) error
}

func Jobs(runner JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(runner.Status())
	}
}

// RefreshJob refreshes one job now. Job names contain slashes, so clients
// send them escaped ("wallet%2F<address>").
func RefreshJob(runner JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil || name == "" {
			http.Error(w, `{"error":"invalid job name"}`, http.StatusBadRequest)
			return
		}

		err = runner.RefreshNow(r.Context(), name)
		if errors.Is(err, monitor.ErrUnknownJob) {
			http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
			return
		}

		status := http.StatusOK
		if err != nil {
			status = http.StatusBadGateway
		}
		for _, st := range runner.Status() {
			if st.Name == name {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(st)
				return
			}
		}
		http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
	}
}
