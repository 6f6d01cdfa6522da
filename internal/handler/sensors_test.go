package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/helium-monitor/internal/coordinator"
	"github.com/web3-frozen/helium-monitor/internal/monitor"
	"github.com/web3-frozen/helium-monitor/internal/sensor"
)

type staticSource struct {
	name    string
	payload json.RawMessage
}

func (s *staticSource) Name() string                 { return s.name }
func (s *staticSource) LastPayload() json.RawMessage { return s.payload }

// sensorList implements SensorSource for testing.
type sensorList []*sensor.Sensor

func (l sensorList) Sensors() []*sensor.Sensor { return l }

func (l sensorList) Sensor(id string) (*sensor.Sensor, bool) {
	for _, s := range l {
		if s.UniqueID == id {
			return s, true
		}
	}
	return nil, false
}

func testSensors() sensorList {
	wallet := &staticSource{name: "wallet/abcd1234", payload: json.RawMessage(`{"balance":{"hnt":10,"iot":20,"mobile":30,"solana":40}}`)}
	prices := &staticSource{name: "price", payload: json.RawMessage(`{"helium":{"usd":1.23}}`)}
	list := sensor.WalletSensors(wallet, "abcd1234", slog.Default())
	list = append(list, sensor.PriceSensors(prices, []string{"helium"}, "USD", slog.Default())...)
	return list
}

func TestSensorsHandler(t *testing.T) {
	handler := Sensors(testSensors())

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 5},
		{"by job", "?job=price", 1},
		{"by device", "?device=helium.wallet.abcd", 4},
		{"no match", "?job=heliumstats", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sensors"+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			var states []sensor.State
			if err := json.NewDecoder(rec.Body).Decode(&states); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(states) != tt.want {
				t.Errorf("len(states) = %d, want %d", len(states), tt.want)
			}
		})
	}
}

func TestSensorHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/sensors/{id}", Sensor(testSensors()))

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/helium.wallet.abcd_sol", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var st sensor.State
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Available || st.Value == nil || *st.Value != 40 || st.Unit != "SOL" {
		t.Errorf("state = %+v, want 40 SOL", st)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sensors/nope", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing sensor: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// fakeRunner implements JobRunner for testing.
type fakeRunner struct {
	jobs      map[string]error
	refreshed []string
}

func (f *fakeRunner) Status() []monitor.JobStatus {
	var out []monitor.JobStatus
	for name, err := range f.jobs {
		st := monitor.JobStatus{Name: name, State: coordinator.StateReady}
		if err != nil {
			st.State = coordinator.StateFailed
			st.LastError = err.Error()
		}
		out = append(out, st)
	}
	return out
}

func (f *fakeRunner) RefreshNow(_ context.Context, name string) error {
	err, ok := f.jobs[name]
	if !ok {
		return monitor.ErrUnknownJob
	}
	f.refreshed = append(f.refreshed, name)
	return err
}

func TestJobsHandler(t *testing.T) {
	runner := &fakeRunner{jobs: map[string]error{"heliumstats": nil}}
	rec := httptest.NewRecorder()
	Jobs(runner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var jobs []monitor.JobStatus
	if err := json.NewDecoder(rec.Body).Decode(&jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "heliumstats" || jobs[0].State != coordinator.StateReady {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestRefreshJobHandler(t *testing.T) {
	runner := &fakeRunner{jobs: map[string]error{
		"wallet/abcd1234":           nil,
		"hotspot-rewards2/abcd1234": errors.New("backend down"),
	}}
	r := chi.NewRouter()
	r.Post("/api/jobs/{name}/refresh", RefreshJob(runner))

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"escaped slash", "/api/jobs/wallet%2Fabcd1234/refresh", http.StatusOK},
		{"refresh fails", "/api/jobs/hotspot-rewards2%2Fabcd1234/refresh", http.StatusBadGateway},
		{"unknown job", "/api/jobs/price/refresh", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
	if len(runner.refreshed) != 2 || runner.refreshed[0] != "wallet/abcd1234" {
		t.Errorf("refreshed = %v", runner.refreshed)
	}
}

type readiness bool

func (r readiness) Ready() bool { return bool(r) }

func TestHealthAndReady(t *testing.T) {
	rec := httptest.NewRecorder()
	Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}

	tests := []struct {
		ready bool
		want  int
	}{
		{true, http.StatusOK},
		{false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		Ready(readiness(tt.ready)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != tt.want {
			t.Errorf("ready=%v: status = %d, want %d", tt.ready, rec.Code, tt.want)
		}
	}
}
