package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAdmin(t *testing.T) {
	keys := Keys{Public: []string{"pub"}, Admin: []string{"adm"}}
	h := RequireAdmin(keys)(okHandler())

	cases := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"no key", nil, http.StatusForbidden},
		{"public key", map[string]string{"X-API-Key": "pub"}, http.StatusForbidden},
		{"admin key", map[string]string{"X-API-Key": "adm"}, http.StatusOK},
		{"admin bearer", map[string]string{"Authorization": "Bearer adm"}, http.StatusOK},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range c.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != c.want {
				t.Fatalf("want %d, got %d", c.want, rr.Code)
			}
		})
	}
}

func TestRequireAny(t *testing.T) {
	keys := Keys{Public: []string{"pub"}, Admin: []string{"adm"}}
	h := RequireAny(keys)(okHandler())

	for key, want := range map[string]int{
		"pub": http.StatusOK,
		"adm": http.StatusOK,
		"":    http.StatusUnauthorized,
		"bad": http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("key %q: want %d, got %d", key, want, rr.Code)
		}
	}
}

func TestUnconfiguredKeysAdmitEverything(t *testing.T) {
	h := RequireAdmin(Keys{})(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("dev mode must admit, got %d", rr.Code)
	}
}
