package registrar

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*EZIDClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewEZIDClient(EZIDConfig{
		BaseURL:  srv.URL,
		Username: "apitest",
		Password: "secret",
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestEZIDClient_Register(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotUser string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("success: ark:/21547/B2x42"))
	})

	err := client.Register(context.Background(), "ark:/21547/B2x42", Metadata{
		Target:  "https://bcid.example.org/expedition/42",
		What:    "Demo expedition",
		Profile: "erc",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotPath != "/id/ark:/21547/B2x42" {
		t.Errorf("path = %s", gotPath)
	}
	if gotUser != "apitest" {
		t.Errorf("basic auth user = %s", gotUser)
	}
	if !strings.Contains(gotBody, "_target: https%3A//bcid.example.org/expedition/42") {
		t.Errorf("body missing escaped target: %q", gotBody)
	}
	if !strings.Contains(gotBody, "erc.what: Demo expedition") {
		t.Errorf("body missing erc.what: %q", gotBody)
	}
}

func TestEZIDClient_RegisterErrors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("error: unauthorized"))
		})

		err := client.Register(context.Background(), "ark:/x", Metadata{Target: "t"})
		if err == nil || !strings.Contains(err.Error(), "401") {
			t.Fatalf("register = %v, want 401 error", err)
		}
	})

	t.Run("error body with ok status", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("error: bad metadata"))
		})

		err := client.Register(context.Background(), "ark:/x", Metadata{Target: "t"})
		if err == nil || !strings.Contains(err.Error(), "bad metadata") {
			t.Fatalf("register = %v, want body error", err)
		}
	})
}

func TestEZIDConfig_Validate(t *testing.T) {
	cfg := EZIDConfig{BaseURL: "https://ezid.cdlib.org", Username: "u", Password: "p"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	for _, mutate := range []func(*EZIDConfig){
		func(c *EZIDConfig) { c.BaseURL = "" },
		func(c *EZIDConfig) { c.Username = "" },
		func(c *EZIDConfig) { c.Password = "" },
	} {
		c := cfg
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", c)
		}
	}
}

func TestEncodeANVL(t *testing.T) {
	got := encodeANVL(Metadata{
		Target:  "https://example.org/a:b",
		Who:     "alice",
		What:    "line1\nline2",
		When:    "2016-01-01",
		Profile: "erc",
	})

	want := []string{
		"_target: https%3A//example.org/a%3Ab",
		"_profile: erc",
		"erc.who: alice",
		"erc.what: line1%0Aline2",
		"erc.when: 2016-01-01",
	}
	for _, line := range want {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("missing line %q in %q", line, got)
		}
	}

	// Empty fields are omitted entirely
	got = encodeANVL(Metadata{Target: "t"})
	if strings.Contains(got, "erc.who") {
		t.Errorf("empty who should be omitted: %q", got)
	}
}
