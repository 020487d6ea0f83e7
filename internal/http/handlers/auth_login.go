package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/auth"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/jackc/pgx/v5"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      loginUser `json:"user"`
}

type loginUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required")
		return
	}

	var (
		userID       int64
		passwordHash string
		name         string
		role         string
		isActive     bool
	)
	err := h.DB.QueryRow(ctx,
		`select id, password_hash, name, role, is_active from staff_users where email = $1`,
		email).Scan(&userID, &passwordHash, &name, &role, &isActive)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	if err != nil {
		h.Logger.Error("login lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in")
		return
	}

	if !isActive || !auth.CheckPassword(passwordHash, req.Password) {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	expiry := time.Duration(h.Config.JWTExpirySeconds) * time.Second
	token, err := auth.IssueAccessToken(h.Config.JWTSecret, userID, auth.StaffRole(role), email, name, expiry)
	if err != nil {
		h.Logger.Error("token issue failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in")
		return
	}

	response.Success(w, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(expiry),
		User:      loginUser{ID: userID, Email: email, Name: name, Role: role},
	})
}
