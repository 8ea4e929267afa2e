package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mesaqr/api/internal/auth"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/handler"
)

const testSecret = "test-secret"

// --- Helpers ---

func hashPasscode(t *testing.T, passcode string) string {
	t.Helper()
	h, err := auth.HashPasscode(passcode)
	if err != nil {
		t.Fatalf("hash passcode: %v", err)
	}
	return h
}

func setupAuthRouter(t *testing.T) *chi.Mux {
	t.Helper()
	h := handler.NewAuthHandler(hashPasscode(t, "4321"), testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, "POST", path, "", body)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Login tests ---

func TestLogin_ValidPasscode(t *testing.T) {
	router := setupAuthRouter(t)

	rr := postJSON(t, router, "/auth/login", map[string]string{
		"role":     enum.RoleKitchen,
		"passcode": "4321",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["role"] != enum.RoleKitchen {
		t.Errorf("role: got %v", resp["role"])
	}
	if _, ok := resp["table_id"]; ok {
		t.Error("staff token response should not carry a table_id")
	}

	token, _ := resp["access_token"].(string)
	claims, err := auth.ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.Role != enum.RoleKitchen || !claims.IsStaff() {
		t.Errorf("claims: got role %q", claims.Role)
	}
}

func TestLogin_WrongPasscode(t *testing.T) {
	router := setupAuthRouter(t)

	rr := postJSON(t, router, "/auth/login", map[string]string{
		"role":     enum.RoleWaiter,
		"passcode": "0000",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestLogin_CustomerRoleRejected(t *testing.T) {
	router := setupAuthRouter(t)

	rr := postJSON(t, router, "/auth/login", map[string]string{
		"role":     enum.RoleCustomer,
		"passcode": "4321",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(t)

	rr := postJSON(t, router, "/auth/login", map[string]string{"role": enum.RoleBar})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	router := setupAuthRouter(t)

	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// --- Table session tests ---

func TestTableSession_IssuesScopedToken(t *testing.T) {
	router := setupAuthRouter(t)

	rr := postJSON(t, router, "/auth/table", map[string]string{"table_id": " 7 "})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["table_id"] != "7" {
		t.Errorf("table_id: got %v", resp["table_id"])
	}

	claims, err := auth.ValidateToken(testSecret, resp["access_token"].(string))
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.Role != enum.RoleCustomer || claims.TableID != "7" {
		t.Errorf("claims: got %q/%q", claims.Role, claims.TableID)
	}
}

func TestTableSession_MissingTable(t *testing.T) {
	router := setupAuthRouter(t)

	rr := postJSON(t, router, "/auth/table", map[string]string{"table_id": "  "})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
