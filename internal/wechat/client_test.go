package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("app-id", "secret")
	c.SetBaseURL(srv.URL)
	return c
}

func TestCode2Session(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sns/jscode2session" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("js_code") != "code-1" {
			t.Fatalf("unexpected js_code %s", r.URL.Query().Get("js_code"))
		}
		json.NewEncoder(w).Encode(map[string]any{"openid": "openid-1", "session_key": "sk"})
	}))

	session, err := c.Code2Session(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("code2session: %v", err)
	}
	if session.OpenID != "openid-1" {
		t.Fatalf("expected openid-1, got %s", session.OpenID)
	}
}

func TestCode2SessionTextPlainBody(t *testing.T) {
	// The platform serves JSON with a text/plain content type; the client
	// must still decode it.
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]any{"openid": "openid-2", "session_key": "sk"})
	}))

	session, err := c.Code2Session(context.Background(), "code-2")
	if err != nil {
		t.Fatalf("code2session: %v", err)
	}
	if session.OpenID != "openid-2" {
		t.Fatalf("expected openid-2, got %s", session.OpenID)
	}
}

func TestCode2SessionInvalidCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errcode": 40029, "errmsg": "invalid code"})
	}))

	if _, err := c.Code2Session(context.Background(), "bad"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestMsgSecCheckRisky(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 7200})
		case "/wxa/msg_sec_check":
			json.NewEncoder(w).Encode(map[string]any{
				"errcode": 0,
				"result":  map[string]any{"suggest": "risky", "label": 20001},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	err := c.MsgSecCheck(context.Background(), "openid-1", "bad text")
	if !errors.Is(err, ErrRiskyContent) {
		t.Fatalf("expected ErrRiskyContent, got %v", err)
	}
}

func TestMsgSecCheckPassReusesToken(t *testing.T) {
	tokenCalls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/token":
			tokenCalls++
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 7200})
		case "/wxa/msg_sec_check":
			if r.URL.Query().Get("access_token") != "tok" {
				t.Fatalf("missing access token")
			}
			json.NewEncoder(w).Encode(map[string]any{"errcode": 0, "result": map[string]any{"suggest": "pass"}})
		}
	}))

	for i := 0; i < 3; i++ {
		if err := c.MsgSecCheck(context.Background(), "openid-1", "fine"); err != nil {
			t.Fatalf("msg_sec_check: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Fatalf("expected token fetched once, got %d", tokenCalls)
	}
}
