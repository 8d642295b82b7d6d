package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRobotsChecker_CanFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: astrolabium\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker("astrolabium/0.1 (+https://example.org)", server.Client())

	allowed, delay, err := checker.CanFetch(context.Background(), server.URL+"/wds/summ.txt")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("Expected /wds to be allowed for astrolabium")
	}
	if delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}

	allowed, _, _ = checker.CanFetch(context.Background(), server.URL+"/private/x")
	if allowed {
		t.Error("Expected /private to be disallowed")
	}
}

func TestRobotsChecker_MissingAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	checker := NewRobotsChecker("astrolabium", nil)
	allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil || !allowed {
		t.Errorf("Expected allowed without robots.txt, got %v, %v", allowed, err)
	}

	checker.Clear()
	if _, _, err := checker.CanFetch(context.Background(), "://bad"); err == nil {
		t.Error("Expected error for malformed URL")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"astrolabium/0.1 (+https://example.org)": "astrolabium",
		"curl":                                   "curl",
		"":                                       "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:8080", "", "cdsarc.cds.unistra.fr")

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "www.astro.gsu.edu", Path: "/wds"}}
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if got == nil || got.Host != "proxy:8080" {
		t.Errorf("Expected proxy:8080, got %v", got)
	}

	req = &http.Request{URL: &url.URL{Scheme: "https", Host: "cdsarc.cds.unistra.fr"}}
	got, _ = proxy(req)
	if got != nil {
		t.Errorf("Expected no proxy for NO_PROXY host, got %v", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/.astrolabium/cache")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".astrolabium/cache"); got != want {
		t.Errorf("ExpandHome = %q, want %q", got, want)
	}
	if got, _ := ExpandHome("/tmp/x"); got != "/tmp/x" {
		t.Errorf("absolute path changed: %q", got)
	}
}

func TestHostOf(t *testing.T) {
	if got := HostOf("https://query.wikidata.org/sparql?x=1"); got != "query.wikidata.org" {
		t.Errorf("HostOf = %q", got)
	}
	if got := HostOf("not a url"); got != "not a url" {
		t.Errorf("HostOf = %q", got)
	}
}
