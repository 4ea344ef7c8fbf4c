package decoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

func testClient(url string) *Client {
	return NewClient(config.DecoderConfig{
		URL:     url,
		Token:   "test-token",
		Timeout: 2 * time.Second,
	})
}

func TestDecodeRoundTrip(t *testing.T) {
	decoded := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	mux := http.NewServeMux()
	mux.HandleFunc("/decode", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}

		var req nfc.DecodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.PatchUid) != 8 {
			t.Errorf("PatchUid length = %d, want 8", len(req.PatchUid))
		}
		if req.P1 != 3 || len(req.AuthData) == 0 {
			t.Errorf("session material missing: p1=%d authData=%x", req.P1, req.AuthData)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{"data": decoded})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := testClient(srv.URL).Decode(context.Background(), nfc.DecodeRequest{
		PatchUid:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
		PatchInfo: []byte{0x9d, 0x08, 0x30, 0x01, 0x71, 0x2b},
		AuthData:  []byte{0xde, 0xca, 0xfb, 0xad},
		Content:   []byte{0xaa, 0xbb},
		P1:        3,
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != string(decoded) {
		t.Errorf("Decode = %x, want %x", got, decoded)
	}
}

func TestAuthorizeHitsAuthAndDataEndpoints(t *testing.T) {
	var authHits, dataHits int

	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		authHits++
		var req nfc.AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode auth request: %v", err)
		}
		if len(req.PatchUid) != 8 || len(req.AuthData) == 0 {
			t.Errorf("auth request shape wrong: uid=%x authData=%x", req.PatchUid, req.AuthData)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"p1": 7})
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		dataHits++
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []byte{0x11, 0x22}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := testClient(srv.URL).Authorize(context.Background(), nfc.AuthRequest{
		PatchUid: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		AuthData: []byte{0x9d, 0x08, 0x30, 0x01, 0x71, 0x2b},
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if authHits != 1 || dataHits != 1 {
		t.Fatalf("endpoint hits = %d/%d, want 1/1", authHits, dataHits)
	}
	if resp.P1 != 7 {
		t.Errorf("P1 = %d, want 7", resp.P1)
	}
	if string(resp.Data) != string([]byte{0x11, 0x22}) {
		t.Errorf("Data = %x", resp.Data)
	}
}

func TestAuthorizeAuthEndpointFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if _, err := testClient(srv.URL).Authorize(context.Background(), nfc.AuthRequest{}); err == nil {
		t.Fatal("expected error for auth endpoint failure")
	}
}

func TestDecodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Decode(context.Background(), nfc.DecodeRequest{}); err == nil {
		t.Fatal("expected error for server failure")
	}
}

func TestDecodeServiceReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown sensor generation"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Decode(context.Background(), nfc.DecodeRequest{})
	if err == nil {
		t.Fatal("expected error from service error field")
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []byte{}})
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Decode(context.Background(), nfc.DecodeRequest{}); err == nil {
		t.Fatal("expected error for empty decode payload")
	}
}

func TestDecodeUnreachable(t *testing.T) {
	c := NewClient(config.DecoderConfig{
		URL:     "http://127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
	})

	if _, err := c.Decode(context.Background(), nfc.DecodeRequest{}); err == nil {
		t.Fatal("expected error for unreachable service")
	}
}
