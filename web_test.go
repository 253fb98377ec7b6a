/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"
)

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}

	return resp, body
}

func TestRoutes(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/", http.StatusOK, "text/html", `href="/bingo"`},
		{"/healthz", http.StatusOK, "text/plain", "Ok"},
		{"/version", http.StatusOK, "text/plain", "triviabingo v" + releaseVersion},
		{"/robots.txt", http.StatusOK, "text/plain", "Disallow: /bingo/"},
		{"/leaderboard", http.StatusOK, "application/json", "[]"},
		{"/assets/bingo/app.js", http.StatusOK, "text/javascript", "WebSocket"},
		{"/assets/bingo/app.css", http.StatusOK, "text/css", ""},
		{"/assets/missing.js", http.StatusNotFound, "", ""},
		{"/favicons/favicon.svg", http.StatusOK, "image/svg+xml", "<svg"},
		{"/favicons/nope.png", http.StatusNotFound, "", ""},
		{"/bingo/abcd1234", http.StatusOK, "text/html", "<html"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tc.path)

			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			if tc.contentType != "" && !strings.HasPrefix(resp.Header.Get("Content-Type"), tc.contentType) {
				t.Errorf("content type = %q, want %q", resp.Header.Get("Content-Type"), tc.contentType)
			}
			if tc.contains != "" && !strings.Contains(string(body), tc.contains) {
				t.Errorf("body does not contain %q", tc.contains)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))

	resp, _ := get(t, srv.URL+"/healthz")

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("Content-Security-Policy"); !strings.Contains(got, "wss:") {
		t.Errorf("Content-Security-Policy = %q", got)
	}
	if got := resp.Header.Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS sent over plain http: %q", got)
	}
}

func TestIndexSetsPlayerCookie(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))

	resp, _ := get(t, srv.URL+"/bingo/abcd1234")

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == playerCookieName && len(c.Value) == 32 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no %s cookie in response", playerCookieName)
	}
}

func TestQRCode(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))

	resp, body := get(t, srv.URL+"/bingo/abcd1234/qr")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("body is not a png")
	}
}

func TestPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/trivia/"

	srv, _ := startServer(t, cfg, testServices(t, ""))

	resp, body := get(t, srv.URL+"/trivia/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `href="/trivia/bingo"`) {
		t.Errorf("home page links ignore the prefix")
	}

	if resp, _ := get(t, srv.URL+"/healthz"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unprefixed route still served: %d", resp.StatusCode)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	srv, _ := startServer(t, testConfig(), testServices(t, ""))

	for _, q := range []string{"?n=5", "?n=0", "?n=1000", "?n=abc"} {
		resp, body := get(t, srv.URL+"/leaderboard"+q)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d", q, resp.StatusCode)
		}
		if strings.TrimSpace(string(body)) != "[]" {
			t.Errorf("%s: body = %s", q, body)
		}
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"remote", "192.0.2.1:1234", nil, "192.0.2.1:1234"},
		{"ipv6", "[2001:db8::1]:80", nil, "[2001:db8::1]:80"},
		{"real ip", "192.0.2.1:1234", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7:1234"},
		{"cloudflare", "192.0.2.1:1234", map[string]string{"CF-Connecting-IP": "203.0.113.9", "X-Real-IP": "198.51.100.7"}, "203.0.113.9:1234"},
		{"bogus header", "192.0.2.1:1234", map[string]string{"X-Real-IP": "not-an-ip"}, "192.0.2.1:1234"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}

			if got := realIP(r); got != tc.want {
				t.Errorf("realIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1.0 kB"},
		{1500, "1.5 kB"},
		{2_000_000, "2.0 MB"},
		{3_000_000_000, "3.0 GB"},
	}

	for _, tc := range tests {
		if got := humanReadableSize(tc.in); got != tc.want {
			t.Errorf("humanReadableSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
