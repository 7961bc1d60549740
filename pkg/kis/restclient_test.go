package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradesignal/internal/kis/codec"
	"tradesignal/internal/strategy"

	"go.uber.org/zap"
)

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": "TOKEN-1",
		"token_type":   "Bearer",
		"expires_in":   86400,
	})
}

// go test -v --run TestApprovalKeyCached
func TestApprovalKeyCached(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/Approval" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		requests++

		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["grant_type"] != "client_credentials" || body["appkey"] != "APP" {
			t.Errorf("unexpected request body: %v", body)
		}

		json.NewEncoder(w).Encode(map[string]string{"approval_key": "APPROVAL-1"})
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, "APP", "SECRET", 5*time.Second)

	for i := 0; i < 2; i++ {
		key, err := c.ApprovalKey(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "APPROVAL-1" {
			t.Errorf("unexpected key: %q", key)
		}
	}
	if requests != 1 {
		t.Errorf("expected 1 upstream request, got %d", requests)
	}
}

// go test -v --run TestGetPrice
func TestGetPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler)
	mux.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("tr_id"); got != trIDInquirePrice {
			t.Errorf("unexpected tr_id header: %q", got)
		}
		if got := r.Header.Get("authorization"); got != "Bearer TOKEN-1" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if got := r.URL.Query().Get("FID_INPUT_ISCD"); got != "005930" {
			t.Errorf("unexpected instrument code: %q", got)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0",
			"output": map[string]string{
				"stck_prpr": "71500",
				"stck_oprc": "70900",
				"stck_hgpr": "71600",
				"stck_lwpr": "70800",
				"acml_vol":  "8503558",
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewRESTClient(srv.URL, "APP", "SECRET", 5*time.Second)

	tick, err := c.GetPrice(context.Background(), "005930")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick.InstrumentCode != "005930" || tick.Price != 71500 {
		t.Errorf("unexpected tick: %+v", tick)
	}
	if tick.Open != 70900 || tick.High != 71600 || tick.Low != 70800 {
		t.Errorf("unexpected session prices: %+v", tick)
	}
	if tick.AccVolume != 8503558 {
		t.Errorf("unexpected accumulated volume: %d", tick.AccVolume)
	}
	if tick.Source != codec.SourcePolledSnapshot {
		t.Errorf("expected polled snapshot source, got %q", tick.Source)
	}
}

// go test -v --run TestGetPriceVolumeDelta
func TestGetPriceVolumeDelta(t *testing.T) {
	accVolumes := []string{"8503558", "8503658", "100"}
	call := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler)
	mux.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", func(w http.ResponseWriter, r *http.Request) {
		acc := accVolumes[call]
		call++
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0",
			"output": map[string]string{
				"stck_prpr": "71500",
				"stck_oprc": "70900",
				"stck_hgpr": "71600",
				"stck_lwpr": "70800",
				"acml_vol":  acc,
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewRESTClient(srv.URL, "APP", "SECRET", 5*time.Second)

	// First observation has no reference point.
	tick, err := c.GetPrice(context.Background(), "005930")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick.Volume != 0 || tick.AccVolume != 8503558 {
		t.Errorf("expected zero volume on first poll, got %+v", tick)
	}

	// Second poll reports the increment since the first.
	tick, err = c.GetPrice(context.Background(), "005930")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick.Volume != 100 {
		t.Errorf("expected volume delta 100, got %d", tick.Volume)
	}

	// A session reset (accumulated volume going backwards) reports zero.
	tick, err = c.GetPrice(context.Background(), "005930")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick.Volume != 0 {
		t.Errorf("expected zero volume after session reset, got %d", tick.Volume)
	}
}

// go test -v --run TestGetPriceEnvelopeError
func TestGetPriceEnvelopeError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler)
	mux.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"rt_cd":  "1",
			"msg_cd": "EGW00123",
			"msg1":   "invalid instrument",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewRESTClient(srv.URL, "APP", "SECRET", 5*time.Second)

	_, err := c.GetPrice(context.Background(), "999999")
	if err == nil {
		t.Fatal("expected envelope error")
	}
	if !strings.Contains(err.Error(), "EGW00123") {
		t.Errorf("error should carry the vendor message code, got %v", err)
	}
}

// go test -v --run TestOrderExecuteAccepted
func TestOrderExecuteAccepted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler)
	mux.HandleFunc("/uapi/domestic-stock/v1/trading/order-cash", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("tr_id"); got != trIDOrderBuy {
			t.Errorf("expected buy tr_id, got %q", got)
		}

		var body orderRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.CANO != "12345678" || body.AcntPrdtCd != "01" {
			t.Errorf("unexpected account split: %+v", body)
		}
		if body.PDNO != "005930" || body.OrdDvsn != "01" || body.OrdUnpr != "0" {
			t.Errorf("expected market order for 005930, got %+v", body)
		}
		if body.OrdQty != "3" {
			t.Errorf("unexpected quantity: %q", body.OrdQty)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd":  "0",
			"output": map[string]string{"ODNO": "0001234567"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := NewRESTClient(srv.URL, "APP", "SECRET", 5*time.Second)
	oc, err := NewOrderClient(rest, "1234567801", 3, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sig := strategy.TradingSignal{InstrumentCode: "005930", Type: strategy.SignalBuy}
	result, err := oc.Execute(context.Background(), 1, 7, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.OrderID != "0001234567" {
		t.Errorf("unexpected result: %+v", result)
	}
}

// go test -v --run TestOrderExecuteRejected
func TestOrderExecuteRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler)
	mux.HandleFunc("/uapi/domestic-stock/v1/trading/order-cash", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("tr_id"); got != trIDOrderSell {
			t.Errorf("expected sell tr_id, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"rt_cd":  "1",
			"msg_cd": "APBK0013",
			"msg1":   "insufficient balance",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := NewRESTClient(srv.URL, "APP", "SECRET", 5*time.Second)
	oc, err := NewOrderClient(rest, "1234567801", 1, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sig := strategy.TradingSignal{InstrumentCode: "005930", Type: strategy.SignalSell}
	result, err := oc.Execute(context.Background(), 1, 7, sig)
	if err != nil {
		t.Fatalf("broker rejection is not a transport error: %v", err)
	}
	if result.Success {
		t.Error("rejected order must not report success")
	}
}

// go test -v --run TestOrderExecuteHold
func TestOrderExecuteHold(t *testing.T) {
	rest := NewRESTClient("http://unused", "APP", "SECRET", 5*time.Second)
	oc, err := NewOrderClient(rest, "1234567801", 1, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sig := strategy.TradingSignal{InstrumentCode: "005930", Type: strategy.SignalHold}
	if _, err := oc.Execute(context.Background(), 1, 7, sig); err == nil {
		t.Error("HOLD must not be executable")
	}
}

func TestNewOrderClientAccount(t *testing.T) {
	rest := NewRESTClient("http://unused", "APP", "SECRET", 5*time.Second)
	if _, err := NewOrderClient(rest, "12345", 1, zap.NewNop()); err == nil {
		t.Error("expected error for short account number")
	}
}
