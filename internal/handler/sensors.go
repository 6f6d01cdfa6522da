package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/helium-monitor/internal/sensor"
)

// SensorSource lists the sensors of every configured entry.
type SensorSource interface {
	Sensors() []*sensor.Sensor
	Sensor(uniqueID string) (*sensor.Sensor, bool)
}

// Sensors returns every sensor state. ?job= and ?device= filter the list.
func Sensors(src SensorSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := r.URL.Query().Get("job")
		device := r.URL.Query().Get("device")

		states := []sensor.State{}
		for _, s := range src.Sensors() {
			if job != "" && s.Job() != job {
				continue
			}
			if device != "" && s.Device.ID != device {
				continue
			}
			states = append(states, s.State())
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(states)
	}
}

func Sensor(src SensorSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := src.Sensor(chi.URLParam(r, "id"))
		if !ok {
			http.Error(w, `{"error":"sensor not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.State())
	}
}
