package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mesaqr/api/internal/auth"
	"github.com/mesaqr/api/internal/enum"
	"github.com/rs/zerolog/log"
)

// AuthHandler issues session tokens. Staff unlock their role with the shared
// passcode; diners get a token for the table whose QR code they scanned.
type AuthHandler struct {
	passcodeHash string
	jwtSecret    string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(passcodeHash, jwtSecret string) *AuthHandler {
	return &AuthHandler{passcodeHash: passcodeHash, jwtSecret: jwtSecret}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/table", h.TableSession)
}

// --- Request / Response types ---

type loginRequest struct {
	Role     string `json:"role"`
	Passcode string `json:"passcode"`
}

type tableSessionRequest struct {
	TableID string `json:"table_id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	TableID     string `json:"table_id,omitempty"`
}

// --- Handlers ---

// Login handles role + passcode authentication for staff views.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Role == "" || req.Passcode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role and passcode are required"})
		return
	}
	if !enum.IsStaffRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	if err := auth.CheckPasscode(h.passcodeHash, req.Passcode); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	h.respondWithToken(w, req.Role, "")
}

// TableSession issues a customer token bound to one table.
func (h *AuthHandler) TableSession(w http.ResponseWriter, r *http.Request) {
	var req tableSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID := strings.TrimSpace(req.TableID)
	if tableID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	h.respondWithToken(w, enum.RoleCustomer, tableID)
}

// --- Helpers ---

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, role, tableID string) {
	token, err := auth.GenerateToken(h.jwtSecret, role, tableID)
	if err != nil {
		log.Error().Err(err).Str("role", role).Msg("generate token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		Role:        role,
		TableID:     tableID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}
