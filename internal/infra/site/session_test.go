package site

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/vietddude/arcsign/internal/classify"
	"github.com/vietddude/arcsign/internal/core/config"
	"github.com/vietddude/arcsign/internal/core/domain"
)

func newTestSession(t *testing.T, loginURL string) *Session {
	t.Helper()
	cfg := config.Default().Site
	cfg.LoginURL = loginURL
	cfg.Timeout = 2 * time.Second
	s, err := NewSession(cfg, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_LoginKeepsCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded; charset=UTF-8" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "pw" || r.PostForm.Get("login_type") != "2" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte(`{"status":1,"msg":"登录成功"}`))
	})
	mux.HandleFunc("/ucenter", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value != "abc" {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`<span class="sign-status">已签到</span>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestSession(t, server.URL+"/login")
	ctx := context.Background()
	if err := s.Login(ctx, domain.Credential{Identifier: "alice", Secret: "pw"}, classify.Default()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	sample, err := s.Issue(ctx, Request{Target: "status", Method: http.MethodGet, URL: server.URL + "/ucenter"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if sample.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with session cookie, got %d", sample.StatusCode)
	}
}

func TestSession_LoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":0,"msg":"密码错误"}`))
	}))
	defer server.Close()

	s := newTestSession(t, server.URL)
	err := s.Login(context.Background(), domain.Credential{Identifier: "alice", Secret: "bad"}, classify.Default())

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Reason != "密码错误" {
		t.Errorf("unexpected reason %q", authErr.Reason)
	}
}

func TestSession_LoginNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	s := newTestSession(t, server.URL)
	err := s.Login(context.Background(), domain.Credential{Identifier: "alice", Secret: "pw"}, classify.Default())

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestSession_LoginMissingCredential(t *testing.T) {
	s := newTestSession(t, "http://127.0.0.1:1/unused")
	err := s.Login(context.Background(), domain.Credential{}, classify.Default())

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestSession_IssueNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	s := newTestSession(t, target)
	_, err := s.Issue(context.Background(), Request{Target: "probe", Method: http.MethodGet, URL: target})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestSession_IssueTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	s := newTestSession(t, server.URL)
	_, err := s.Issue(context.Background(), Request{
		Target:  "slow",
		Method:  http.MethodGet,
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSession_IssueHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("missing X-Requested-With")
		}
		if r.Header.Get("Referer") != "https://m.arctime.cn/home/ucenter" {
			t.Errorf("unexpected referer %q", r.Header.Get("Referer"))
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("teapot"))
	}))
	defer server.Close()

	s := newTestSession(t, server.URL)
	header := http.Header{}
	header.Set("Referer", "https://m.arctime.cn/home/ucenter")
	sample, err := s.Issue(context.Background(), Request{
		Target: "probe",
		Method: http.MethodPost,
		URL:    server.URL,
		Header: header,
		Form:   url.Values{},
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if sample.StatusCode != http.StatusTeapot || sample.Body != "teapot" {
		t.Errorf("unexpected sample %+v", sample)
	}
}

func TestIsThrottled(t *testing.T) {
	tests := []struct {
		sample domain.ResponseSample
		expect bool
	}{
		{domain.ResponseSample{StatusCode: 429}, true},
		{domain.ResponseSample{StatusCode: 200, Body: `{"status":0,"msg":"请求过于频繁"}`}, true},
		{domain.ResponseSample{StatusCode: 200, Body: "Rate Limit exceeded"}, true},
		{domain.ResponseSample{StatusCode: 200, Body: `{"status":1}`}, false},
		{domain.ResponseSample{StatusCode: 500, Body: "internal error"}, false},
	}

	for _, tt := range tests {
		if got := IsThrottled(tt.sample); got != tt.expect {
			t.Errorf("IsThrottled(%+v) = %v, want %v", tt.sample, got, tt.expect)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("今日已签到", 2); got != "今日..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}
