package gateways

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const updatePayload = `[
  {"hash": "ABC123", "name": "spring", "version": "2.5.6", "title": "Spring Framework", "cves": ["CVE-2014-0001", "CVE-2010-1622", "CVE-2014-0001"]},
  {"hash": "", "name": "commons-collections", "version": "3.2.1", "cves": ["CVE-2015-7501"]}
]`

// Test creating a new update feed gateway
func TestNewUpdateFeedGateway(t *testing.T) {
	gateway := NewUpdateFeedGateway("", "")

	if gateway == nil {
		t.Fatal("NewUpdateFeedGateway returned nil")
	}

	want := "https://www.victi.ms/service/v2/update/1970-01-01T00:00:00/"
	if got := gateway.UpdateURL(time.Time{}); got != want {
		t.Errorf("UpdateURL = %s, want %s", got, want)
	}
}

// Test url composition with missing slashes
func TestUpdateFeedGateway_UpdateURL(t *testing.T) {
	gateway := NewUpdateFeedGateway("http://mirror.local", "/victims")
	since := time.Date(2024, 3, 9, 17, 4, 5, 0, time.UTC)

	want := "http://mirror.local/victims/v2/update/2024-03-09T17:04:05/"
	if got := gateway.UpdateURL(since); got != want {
		t.Errorf("UpdateURL = %s, want %s", got, want)
	}
}

// Test fetching records
func TestUpdateFeedGateway_Fetch(t *testing.T) {
	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		requested = r.URL.Path
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(updatePayload))
	}))
	defer server.Close()

	gateway := NewUpdateFeedGateway(server.URL, "service/")
	records, err := gateway.Fetch(context.Background(), time.Time{})

	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if requested != "/service/v2/update/1970-01-01T00:00:00/" {
		t.Errorf("Requested path = %s", requested)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got: %d", len(records))
	}

	if records[0].Name != "spring" || records[0].Title != "Spring Framework" {
		t.Errorf("First record = %+v", records[0])
	}

	// ids are sorted and deduplicated
	if got := strings.Join(records[0].CVEs, ","); got != "CVE-2010-1622,CVE-2014-0001" {
		t.Errorf("CVEs = %s, want CVE-2010-1622,CVE-2014-0001", got)
	}
}

// Test non-200 responses
func TestUpdateFeedGateway_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gateway := NewUpdateFeedGateway(server.URL, "service/")
	_, err := gateway.Fetch(context.Background(), time.Time{})

	if err == nil {
		t.Fatal("Expected error for 503 response, got nil")
	}
	if !strings.Contains(err.Error(), "status 503") {
		t.Errorf("Expected status in error, got: %v", err)
	}
}

// Test invalid JSON response
func TestUpdateFeedGateway_Fetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	gateway := NewUpdateFeedGateway(server.URL, "service/")
	_, err := gateway.Fetch(context.Background(), time.Time{})

	if err == nil {
		t.Fatal("Expected error for invalid JSON, got nil")
	}
}

// Test context cancellation
func TestUpdateFeedGateway_Fetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	gateway := NewUpdateFeedGateway(server.URL, "service/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	if _, err := gateway.Fetch(ctx, time.Time{}); err == nil {
		t.Fatal("Expected error for canceled context, got nil")
	}
}

type stubVerifier struct {
	payload   []byte
	signature string
	err       error
}

func (s *stubVerifier) Verify(data []byte, sig io.Reader) error {
	s.payload = data
	raw, _ := io.ReadAll(sig)
	s.signature = string(raw)
	return s.err
}

// Test that signed feeds fetch and check the detached signature
func TestUpdateFeedGateway_Fetch_Signed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".asc") {
			_, _ = w.Write([]byte("detached-signature"))
			return
		}
		_, _ = w.Write([]byte(updatePayload))
	}))
	defer server.Close()

	t.Run("valid signature", func(t *testing.T) {
		verifier := &stubVerifier{}
		gateway := NewUpdateFeedGateway(server.URL, "service/", WithSignatureVerifier(verifier))

		records, err := gateway.Fetch(context.Background(), time.Time{})
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 records, got: %d", len(records))
		}
		if string(verifier.payload) != updatePayload {
			t.Error("Verifier did not receive the raw payload")
		}
		if verifier.signature != "detached-signature" {
			t.Errorf("Signature = %q", verifier.signature)
		}
	})

	t.Run("rejected signature", func(t *testing.T) {
		verifier := &stubVerifier{err: errors.New("bad signature")}
		gateway := NewUpdateFeedGateway(server.URL, "service/", WithSignatureVerifier(verifier))

		_, err := gateway.Fetch(context.Background(), time.Time{})
		if err == nil {
			t.Fatal("Expected error for rejected signature, got nil")
		}
		if !strings.Contains(err.Error(), "update payload rejected") {
			t.Errorf("Expected 'update payload rejected' error, got: %v", err)
		}
	})
}

// Test a missing signature file
func TestUpdateFeedGateway_Fetch_MissingSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".asc") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(updatePayload))
	}))
	defer server.Close()

	gateway := NewUpdateFeedGateway(server.URL, "service/", WithSignatureVerifier(&stubVerifier{}))
	_, err := gateway.Fetch(context.Background(), time.Time{})

	if err == nil || !strings.Contains(err.Error(), "update signature") {
		t.Errorf("Expected signature download error, got: %v", err)
	}
}
