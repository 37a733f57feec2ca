package analyses

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Set("openId", "openid-"+userID)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var payload map[string]any
	if resp.Body.Len() > 0 {
		if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v\nbody: %s", err, resp.Body.String())
		}
	}
	return resp, payload
}

func TestCreateAnalysisReturnsGatedRecord(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})
	r := newTestRouter(svc, "user-1")

	resp, payload := doJSON(t, r, http.MethodPost, "/api/v1/analyses", `{"wishText":"我要暴富"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if payload["unlockToken"] == "" || payload["unlockToken"] == nil {
		t.Fatal("expected unlockToken in creation response")
	}
	if _, ok := payload["fullResult"]; ok {
		t.Fatal("fullResult must not appear before redemption")
	}
	if payload["unlocked"] != false {
		t.Fatalf("unlocked = %v, want false", payload["unlocked"])
	}
}

func TestCreateAnalysisValidation(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})
	r := newTestRouter(svc, "user-1")

	resp, payload := doJSON(t, r, http.MethodPost, "/api/v1/analyses", `{"wishText":"   "}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	errBody, _ := payload["error"].(map[string]any)
	if errBody["code"] != "validation_error" {
		t.Fatalf("code = %v, want validation_error", errBody["code"])
	}
}

func TestUnlockRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}})
	r := newTestRouter(svc, "user-1")

	_, created := doJSON(t, r, http.MethodPost, "/api/v1/analyses", `{"wishText":"我要暴富"}`)
	id, _ := created["id"].(string)
	token, _ := created["unlockToken"].(string)
	if id == "" || token == "" {
		t.Fatalf("missing id or token in %v", created)
	}

	resp, payload := doJSON(t, r, http.MethodPost, "/api/v1/analyses/"+id+"/unlock", `{"token":"`+token+`"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if payload["fullResult"] == nil {
		t.Fatal("expected fullResult after redemption")
	}

	// Reads after unlock carry the result and no token.
	resp2, read := doJSON(t, r, http.MethodGet, "/api/v1/analyses/"+id, "")
	if resp2.Code != http.StatusOK {
		t.Fatalf("expected 200 on read, got %d", resp2.Code)
	}
	if read["unlocked"] != true {
		t.Fatalf("unlocked = %v, want true", read["unlocked"])
	}
	if _, ok := read["unlockToken"]; ok {
		t.Fatal("unlockToken must not appear after redemption")
	}
	if read["fullResult"] == nil {
		t.Fatal("expected fullResult on read after redemption")
	}
}

func TestUnlockForgedToken(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON, fullResultJSON}})
	r := newTestRouter(svc, "user-1")

	_, created := doJSON(t, r, http.MethodPost, "/api/v1/analyses", `{"wishText":"我要暴富"}`)
	id, _ := created["id"].(string)

	resp, payload := doJSON(t, r, http.MethodPost, "/api/v1/analyses/"+id+"/unlock", `{"token":"forged"}`)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	errBody, _ := payload["error"].(map[string]any)
	if errBody["code"] != "invalid_token" {
		t.Fatalf("code = %v, want invalid_token", errBody["code"])
	}
}

func TestUnlockRequiresToken(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})
	r := newTestRouter(svc, "user-1")

	resp, _ := doJSON(t, r, http.MethodPost, "/api/v1/analyses/some-id/unlock", `{}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})
	r := newTestRouter(svc, "user-1")

	resp, payload := doJSON(t, r, http.MethodGet, "/api/v1/analyses/missing", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	errBody, _ := payload["error"].(map[string]any)
	if errBody["code"] != "not_found" {
		t.Fatalf("code = %v, want not_found", errBody["code"])
	}
}

func TestListAnalysesNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(&fakeLLM{responses: []string{diagnosisJSON}})
	r := newTestRouter(svc, "user-1")

	doJSON(t, r, http.MethodPost, "/api/v1/analyses", `{"wishText":"第一个愿望"}`)
	doJSON(t, r, http.MethodPost, "/api/v1/analyses", `{"wishText":"第二个愿望"}`)

	resp, payload := doJSON(t, r, http.MethodGet, "/api/v1/analyses", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	items, _ := payload["analyses"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(items))
	}
}
