package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{
		APIURL:    srv.URL,
		CompanyID: "cid",
		User:      "user",
		Password:  "secret",
		Timeout:   2 * time.Second,
	})
	c.clock = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return c, srv
}

func TestCreateReceipt_AuthenticatesLazilyAndParsesDoc(t *testing.T) {
	var logins, creates int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		if r.FormValue("cid") != "cid" || r.FormValue("user") != "user" || r.FormValue("pass") != "secret" {
			t.Fatalf("unexpected credentials: %v", r.Form)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "session_id": "s1"})
	})
	mux.HandleFunc("/api/doc/create", func(w http.ResponseWriter, r *http.Request) {
		creates++
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if body["sid"] != "s1" {
			t.Fatalf("expected cached session id, got %v", body["sid"])
		}
		if body["date"] != "31/08/2026" {
			t.Fatalf("unexpected date: %v", body["date"])
		}
		// doc_id as a number must still come back as a string.
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "doc_id": 991, "doc_num": "R2608-1"})
	})

	c, _ := newTestClient(t, mux)

	res, err := c.CreateReceipt(context.Background(), ReceiptPayload{Amount: 150, Description: "donation", ClientPhone: "0501234567"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.OK || res.DocID != "991" || res.DocNum != "R2608-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	// Second call reuses the session.
	if _, err := c.CreateReceipt(context.Background(), ReceiptPayload{Amount: 10}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if logins != 1 || creates != 2 {
		t.Fatalf("expected 1 login and 2 creates, got %d/%d", logins, creates)
	}
}

func TestCreateReceipt_GatewayRejectionIsNormalized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "session_id": "s1"})
	})
	mux.HandleFunc("/api/doc/create", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "invalid vat id"})
	})

	c, _ := newTestClient(t, mux)
	res, err := c.CreateReceipt(context.Background(), ReceiptPayload{Amount: 50})
	if err != nil {
		t.Fatalf("rejections must not surface as errors: %v", err)
	}
	if res.OK || res.Message != "invalid vat id" || res.Raw == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCreateReceipt_TransportFailureIsNormalized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "session_id": "s1"})
	})
	mux.HandleFunc("/api/doc/create", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c, _ := newTestClient(t, mux)
	res, err := c.CreateReceipt(context.Background(), ReceiptPayload{Amount: 50})
	if err != nil {
		t.Fatalf("transport failures must not surface as errors: %v", err)
	}
	if res.OK || res.Message == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCreateReceipt_LoginRejectionIsNormalized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "bad credentials"})
	})

	c, _ := newTestClient(t, mux)
	res, err := c.CreateReceipt(context.Background(), ReceiptPayload{Amount: 50})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.OK {
		t.Fatalf("expected failure result, got %+v", res)
	}
}

func TestCancelReceipt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "session_id": "s1"})
	})
	mux.HandleFunc("/api/doc/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("doc_id") != "991" {
			t.Fatalf("unexpected doc id: %q", r.FormValue("doc_id"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "message": "cancelled"})
	})

	c, _ := newTestClient(t, mux)
	res, err := c.CancelReceipt(context.Background(), "991")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.OK || res.DocID != "991" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCreateReceipt_RejectsNonPositiveAmount(t *testing.T) {
	c := NewClient(ClientConfig{APIURL: "http://localhost:1"})
	if _, err := c.CreateReceipt(context.Background(), ReceiptPayload{Amount: 0}); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}
