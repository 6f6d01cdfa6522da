package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/web3-frozen/helium-monitor/internal/backend"
	"github.com/web3-frozen/helium-monitor/internal/httpclient"
)

// fakeFetcher returns canned responses per call.
type fakeFetcher struct {
	calls atomic.Int32
	paths []string
	resp  func(call int32) (*httpclient.Response, error)
}

func (f *fakeFetcher) GetData(_ context.Context, path, _ string) (*httpclient.Response, error) {
	f.paths = append(f.paths, path)
	return f.resp(f.calls.Add(1))
}

func ok(body string) (*httpclient.Response, error) {
	return &httpclient.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateUninitialized, "uninitialized"},
		{StateRefreshing, "refreshing"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{StateEmpty, "empty"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestJobPaths(t *testing.T) {
	f := &fakeFetcher{}
	tests := []struct {
		job  *Job
		want string
	}{
		{NewJob(f, ""), "heliumstats"},
		{NewStatsJob(f), "heliumstats"},
		{NewWalletJob(f, "abcd1234"), "wallet/abcd1234"},
		{NewHotspotJob(f, "abcd1234"), "hotspot-rewards2/abcd1234"},
		{NewStakingJob(f, "abcd1234"), "staking-rewards/abcd1234"},
	}
	for _, tt := range tests {
		if tt.job.Path() != tt.want {
			t.Errorf("Path() = %q, want %q", tt.job.Path(), tt.want)
		}
		if tt.job.Name() != tt.want {
			t.Errorf("Name() = %q, want %q", tt.job.Name(), tt.want)
		}
		if tt.job.Interval() != DefaultInterval {
			t.Errorf("Interval() = %v, want %v", tt.job.Interval(), DefaultInterval)
		}
		if tt.job.State() != StateUninitialized {
			t.Errorf("State() = %v, want uninitialized", tt.job.State())
		}
	}
}

func TestJobRefreshLifecycle(t *testing.T) {
	boom := errors.New("backend down")
	f := &fakeFetcher{resp: func(call int32) (*httpclient.Response, error) {
		switch call {
		case 1:
			return ok(`{"balance":{"hnt":10}}`)
		case 2:
			return nil, boom
		default:
			return ok(`{"balance":{"hnt":11}}`)
		}
	}}
	j := NewWalletJob(f, "abcd1234", WithInterval(time.Minute))
	ctx := context.Background()

	if err := FirstRefresh(ctx, j); err != nil {
		t.Fatalf("FirstRefresh error: %v", err)
	}
	if j.State() != StateReady {
		t.Errorf("State = %v, want ready", j.State())
	}
	first := string(j.LastPayload())
	if first != `{"balance":{"hnt":10}}` {
		t.Errorf("LastPayload = %s", first)
	}
	if j.LastSuccess().IsZero() {
		t.Error("LastSuccess not set")
	}

	if err := j.Refresh(ctx); !errors.Is(err, boom) {
		t.Fatalf("Refresh error = %v, want %v", err, boom)
	}
	if j.State() != StateFailed {
		t.Errorf("State = %v, want failed", j.State())
	}
	if string(j.LastPayload()) != first {
		t.Errorf("failed refresh replaced payload: %s", j.LastPayload())
	}
	if !errors.Is(j.LastError(), boom) {
		t.Errorf("LastError = %v, want %v", j.LastError(), boom)
	}

	if err := j.Refresh(ctx); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if j.LastError() != nil {
		t.Errorf("LastError = %v, want nil after success", j.LastError())
	}
	if string(j.LastPayload()) != `{"balance":{"hnt":11}}` {
		t.Errorf("LastPayload = %s", j.LastPayload())
	}
}

func TestFirstRefreshFailure(t *testing.T) {
	f := &fakeFetcher{resp: func(int32) (*httpclient.Response, error) {
		return nil, &httpclient.HTTPStatusError{Method: "GET", URL: "x", StatusCode: http.StatusInternalServerError}
	}}
	j := NewStatsJob(f)

	err := FirstRefresh(context.Background(), j)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("FirstRefresh error = %v, want ErrNotReady", err)
	}
	if !errors.Is(err, httpclient.ErrRequest) {
		t.Errorf("FirstRefresh error should wrap the request error: %v", err)
	}
	if j.LastPayload() != nil {
		t.Error("payload should be nil after failed first refresh")
	}
	if j.State() != StateFailed {
		t.Errorf("State = %v, want failed", j.State())
	}
}

func TestJobRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		resp *httpclient.Response
	}{
		{"no content", &httpclient.Response{StatusCode: http.StatusNoContent}},
		{"accepted", &httpclient.Response{StatusCode: http.StatusAccepted, Body: []byte(`{}`)}},
		{"not json", &httpclient.Response{StatusCode: http.StatusOK, Body: []byte(`<html>`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{resp: func(int32) (*httpclient.Response, error) { return tt.resp, nil }}
			j := NewStatsJob(f)
			if err := j.Refresh(context.Background()); err == nil {
				t.Error("Refresh should fail")
			}
			if j.State() != StateFailed {
				t.Errorf("State = %v, want failed", j.State())
			}
		})
	}
}

func TestStakingJobEmpty(t *testing.T) {
	f := &fakeFetcher{resp: func(int32) (*httpclient.Response, error) {
		return nil, &httpclient.HTTPStatusError{Method: "GET", URL: "x", StatusCode: http.StatusNotFound}
	}}
	j := NewStakingJob(f, "abcd1234")

	if err := FirstRefresh(context.Background(), j); err != nil {
		t.Fatalf("FirstRefresh error = %v, want nil for a missing optional resource", err)
	}
	if j.State() != StateEmpty {
		t.Errorf("State = %v, want empty", j.State())
	}
	if j.LastPayload() != nil || j.LastError() != nil {
		t.Error("empty job should carry neither payload nor error")
	}
}

func TestStakingJobOtherErrorsFail(t *testing.T) {
	f := &fakeFetcher{resp: func(int32) (*httpclient.Response, error) {
		return nil, &httpclient.HTTPStatusError{Method: "GET", URL: "x", StatusCode: http.StatusBadGateway}
	}}
	j := NewStakingJob(f, "abcd1234")
	if err := FirstRefresh(context.Background(), j); !errors.Is(err, ErrNotReady) {
		t.Errorf("FirstRefresh error = %v, want ErrNotReady", err)
	}
}

func TestNonOptionalJob404Fails(t *testing.T) {
	f := &fakeFetcher{resp: func(int32) (*httpclient.Response, error) {
		return nil, &httpclient.HTTPStatusError{Method: "GET", URL: "x", StatusCode: http.StatusNotFound}
	}}
	j := NewHotspotJob(f, "abcd1234")
	_ = j.Refresh(context.Background())
	if j.State() != StateFailed {
		t.Errorf("State = %v, want failed", j.State())
	}
}

func TestVsCurrencies(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"EUR", "eur,usd"},
		{"usd", "usd"},
		{"USD", "usd"},
		{"", "usd"},
		{" chf ", "chf,usd"},
	}
	for _, tt := range tests {
		if got := strings.Join(VsCurrencies(tt.in), ","); got != tt.want {
			t.Errorf("VsCurrencies(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriceJobRefresh(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		if got := q.Get("ids"); got != "helium,helium-iot,helium-mobile,wrapped-solana" {
			http.Error(w, "bad ids "+got, http.StatusBadRequest)
			return
		}
		if got := q.Get("vs_currencies"); got != "eur,usd" {
			http.Error(w, "bad currencies "+got, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]map[string]any{
			"helium": {"eur": nil, "usd": 1.23},
		})
	}))
	defer srv.Close()

	p := NewPriceJob(httpclient.New(srv.URL, srv.Client()), "eur")
	ctx := context.Background()
	if err := FirstRefresh(ctx, p); err != nil {
		t.Fatalf("FirstRefresh error: %v", err)
	}
	if p.Name() != PriceJobName {
		t.Errorf("Name = %q, want %q", p.Name(), PriceJobName)
	}
	if p.Currency() != "EUR" {
		t.Errorf("Currency = %q, want EUR", p.Currency())
	}
	if !strings.Contains(string(p.LastPayload()), `"usd":1.23`) {
		t.Errorf("LastPayload = %s", p.LastPayload())
	}

	// No backend cache: every refresh hits the API.
	_ = p.Refresh(ctx)
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestWalletEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/abcd1234" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"balance":{"hnt":10,"iot":20,"mobile":30,"solana":40}}`))
	}))
	defer srv.Close()

	api := backend.New(httpclient.New(srv.URL, srv.Client()), "k")
	j := NewWalletJob(api, "abcd1234")
	if err := FirstRefresh(context.Background(), j); err != nil {
		t.Fatalf("FirstRefresh error: %v", err)
	}
	var body struct {
		Balance map[string]float64 `json:"balance"`
	}
	if err := json.Unmarshal(j.LastPayload(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Balance["solana"] != 40 {
		t.Errorf("solana = %v, want 40", body.Balance["solana"])
	}
}
