package sandbox

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/http/middleware"
)

// authResponse mirrors backend.AuthResult; OTP is filled only when echoing is enabled.
func (h *Handler) authResponse(message, token, otp string) backend.AuthResult {
	out := backend.AuthResult{Success: true, Message: message, Token: token}
	if h.echoOTP {
		out.OTP = otp
	}
	return out
}

func (h *Handler) handleRegisterViaNumber(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Phone string `json:"phone"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.Phone, in.Name = strings.TrimSpace(in.Phone), strings.TrimSpace(in.Name)
	if len(in.Phone) != 10 || in.Name == "" {
		writeMessage(w, http.StatusBadRequest, "Name and a 10-digit phone number are required")
		return
	}
	ctx := r.Context()
	user, err := h.store.FindUserByPhone(ctx, in.Phone)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{ID: uuid.NewString(), Name: in.Name, Phone: in.Phone, CreatedAt: h.now().UTC()}
		if err := h.store.SaveUser(ctx, *user); err != nil {
			h.serverError(w, "save user", err)
			return
		}
	case err != nil:
		h.serverError(w, "find user", err)
		return
	}
	code, err := h.otps.issue(in.Phone, user.ID)
	if err != nil {
		h.serverError(w, "issue otp", err)
		return
	}
	h.logger.Info("sandbox otp issued", "user_id", user.ID, "channel", "phone")
	writeJSON(w, http.StatusOK, h.authResponse("OTP sent successfully", "", code))
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		backend.OTPTarget
		OTP string `json:"otp"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	target := in.Email
	if target == "" {
		target = in.Number
	}
	userID, ok := h.otps.redeem(target, strings.TrimSpace(in.OTP))
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	ctx := r.Context()
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		h.serverError(w, "load user", err)
		return
	}
	if !user.Verified {
		user.Verified = true
		if err := h.store.SaveUser(ctx, *user); err != nil {
			h.serverError(w, "save user", err)
			return
		}
	}
	h.issueToken(w, user.ID, "OTP verified successfully")
}

func (h *Handler) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &in); err != nil || strings.TrimSpace(in.Email) == "" {
		writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}
	user, err := h.store.FindUserByEmail(r.Context(), in.Email)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.serverError(w, "find user", err)
		return
	}
	code, err := h.otps.issue(user.Email, user.ID)
	if err != nil {
		h.serverError(w, "issue otp", err)
		return
	}
	writeJSON(w, http.StatusOK, h.authResponse("OTP resent successfully", "", code))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in backend.Registration
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "Name is required"
	}
	if !strings.Contains(in.Email, "@") {
		fields["email"] = "A valid email is required"
	}
	if len(in.Password) < 6 {
		fields["password"] = "Password must be at least 6 characters"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "message": "Validation failed", "errors": fields})
		return
	}
	if !in.TermsAccepted {
		writeMessage(w, http.StatusBadRequest, "Please accept the terms and conditions")
		return
	}
	ctx := r.Context()
	if _, err := h.store.FindUserByEmail(ctx, in.Email); err == nil {
		writeMessage(w, http.StatusConflict, "User already exists")
		return
	} else if !errors.Is(err, ErrNotFound) {
		h.serverError(w, "find user", err)
		return
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		h.serverError(w, "hash password", err)
		return
	}
	user := User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		CreatedAt:    h.now().UTC(),
	}
	if err := h.store.SaveUser(ctx, user); err != nil {
		h.serverError(w, "save user", err)
		return
	}
	code, err := h.otps.issue(user.Email, user.ID)
	if err != nil {
		h.serverError(w, "issue otp", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.authResponse("Registration successful. Please verify your email.", "", code))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.store.FindUserByEmail(r.Context(), in.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.serverError(w, "find user", err)
		return
	}
	if user == nil || !checkPassword(user.PasswordHash, in.Password) {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !user.Verified {
		code, err := h.otps.issue(user.Email, user.ID)
		if err != nil {
			h.serverError(w, "issue otp", err)
			return
		}
		out := h.authResponse("Please verify your email to continue", "", code)
		out.Case = "verify-otp"
		writeJSON(w, http.StatusOK, out)
		return
	}
	h.issueToken(w, user.ID, "Login successful")
}

func (h *Handler) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	claims, err := parseGoogleToken(in.Token)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid Google token")
		return
	}
	ctx := r.Context()
	user, err := h.store.FindUserByEmail(ctx, claims.Email)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{
			ID:           uuid.NewString(),
			Name:         claims.Name,
			Email:        strings.ToLower(claims.Email),
			Verified:     true,
			IsGoogleAuth: true,
			CreatedAt:    h.now().UTC(),
		}
		if err := h.store.SaveUser(ctx, *user); err != nil {
			h.serverError(w, "save user", err)
			return
		}
	case err != nil:
		h.serverError(w, "find user", err)
		return
	}
	h.issueToken(w, user.ID, "Login successful")
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.PatientFromContext(r.Context())
	user, err := h.store.GetUser(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.serverError(w, "load user", err)
		return
	}
	status := "pending"
	if user.Verified {
		status = "active"
	}
	writeJSON(w, http.StatusOK, backend.Profile{
		Name:         user.Name,
		Email:        user.Email,
		Phone:        user.Phone,
		IsGoogleAuth: user.IsGoogleAuth,
		Status:       status,
		Role:         "user",
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) issueToken(w http.ResponseWriter, userID, message string) {
	token, err := h.tokens.issue(userID)
	if err != nil {
		h.serverError(w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, h.authResponse(message, token, ""))
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("sandbox request failed", "op", op, "error", err)
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}
