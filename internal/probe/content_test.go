package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/webguard/webguard/internal/domain"
)

func TestFingerprint_IgnoresMarkupChurn(t *testing.T) {
	a := []byte(`<html><head><script>var x=1;</script></head><body><h1>Hello</h1> <p>World</p></body></html>`)
	b := []byte(`<html><head><script>var x=999;</script><style>h1{color:red}</style></head><body><h1>Hello</h1><p>World</p></body></html>`)
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("script/style churn must not move the fingerprint")
	}
}

func TestFingerprint_WhitespaceCollapsed(t *testing.T) {
	a := []byte("<p>Hello   World</p>")
	b := []byte("<p>Hello\n\tWorld</p>")
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("whitespace normalization must be stable")
	}
}

func TestFingerprint_VisibleTextChangeMoves(t *testing.T) {
	a := []byte("<p>Hello World</p>")
	b := []byte("<p>HACKED BY ...</p>")
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("visible text change must move the fingerprint")
	}
}

func TestPageChecker_Success(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>stable page</body></html>"))
	}))
	defer s.Close()

	chk := NewPageChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	if !out.Success || out.Fingerprint == "" {
		t.Fatalf("want fingerprint, got %+v", out)
	}

	again := chk.Check(context.Background(), s.URL)
	if again.Fingerprint != out.Fingerprint {
		t.Fatalf("same page must fingerprint identically")
	}
}

func TestPageChecker_Non200IsNotASample(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer s.Close()

	chk := NewPageChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	if out.Success {
		t.Fatalf("want failure on non-200, got %+v", out)
	}
	if out.Fingerprint != "" {
		t.Fatalf("failed fetch must not produce a fingerprint")
	}
	if out.Reason != domain.ReasonHTTPStatus {
		t.Fatalf("want reason http_status, got %q", out.Reason)
	}
}
