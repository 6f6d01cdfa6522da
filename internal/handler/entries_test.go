package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/web3-frozen/helium-monitor/internal/httpclient"
	"github.com/web3-frozen/helium-monitor/internal/integration"
)

type instanceList []*integration.Instance

func (l instanceList) List() []*integration.Instance { return l }

func TestEntriesHandler(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/abcd1234" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"balance":{"hnt":1,"iot":2,"mobile":3,"solana":4}}`))
	}))
	defer backend.Close()

	inst, err := integration.Setup(context.Background(),
		integration.Entry{Integration: integration.KindWallet, Wallet: "abcd1234"},
		integration.Deps{Backend: httpclient.New(backend.URL, nil)},
	)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	rec := httptest.NewRecorder()
	Entries(instanceList{inst}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []entryResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(got))
	}
	e := got[0]
	if e.ID != "wallet:abcd1234" || e.Title != "Wallet abcd" || e.Sensors != 4 {
		t.Errorf("entry = %+v", e)
	}
	if len(e.Jobs) != 1 || e.Jobs[0] != "wallet/abcd1234" {
		t.Errorf("jobs = %v, want [wallet/abcd1234]", e.Jobs)
	}
}
