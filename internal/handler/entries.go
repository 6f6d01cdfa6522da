package handler

import (
	"encoding/json"
	"net/http"

	"github.com/web3-frozen/helium-monitor/internal/integration"
)

// EntryLister lists configured entries. *integration.Registry implements it.
type EntryLister interface {
	List() []*integration.Instance
}

type entryResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Integration integration.Kind `json:"integration"`
	Wallet      string           `json:"wallet,omitempty"`
	Jobs        []string         `json:"jobs"`
	Sensors     int              `json:"sensors"`
}

func Entries(l EntryLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []entryResponse{}
		for _, inst := range l.List() {
			e := entryResponse{
				ID:          inst.ID(),
				Title:       inst.Title(),
				Integration: inst.Entry.Integration,
				Wallet:      inst.Entry.Wallet,
				Jobs:        []string{},
				Sensors:     len(inst.Sensors()),
			}
			for _, j := range inst.ScheduledJobs() {
				e.Jobs = append(e.Jobs, j.Name())
			}
			for _, j := range inst.ManualJobs() {
				e.Jobs = append(e.Jobs, j.Name())
			}
			out = append(out, e)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
