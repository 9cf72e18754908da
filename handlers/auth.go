package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"taskmanager/access"
	"taskmanager/blob"
	"taskmanager/middleware"
	"taskmanager/models"
	"taskmanager/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthHandler struct {
	store  *store.Store
	tokens *middleware.Tokens
	blobs  blob.Store
	log    *zap.Logger
}

func NewAuthHandler(st *store.Store, tokens *middleware.Tokens, blobs blob.Store, log *zap.Logger) *AuthHandler {
	return &AuthHandler{store: st, tokens: tokens, blobs: blobs, log: log}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
}

func validatePassword(v access.Validation, password string) {
	if len(password) < minPasswordLength {
		v.Add("password", "This password is too short. It must contain at least 8 characters.")
		return
	}
	numeric := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		v.Add("password", "This password is entirely numeric.")
	}
}

func (req *registerRequest) validate() error {
	v := access.Validation{}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		v.Add("username", "This field is required.")
	}
	if req.Email == "" {
		v.Add("email", "This field is required.")
	} else if !strings.Contains(req.Email, "@") {
		v.Add("email", "Enter a valid email address.")
	}
	if req.Password == "" {
		v.Add("password", "This field is required.")
	}
	if req.Password2 == "" {
		v.Add("password2", "This field is required.")
	}
	if req.Password != "" && req.Password != req.Password2 {
		v.Add("password", "Password fields didn't match.")
	}
	if req.Password != "" {
		validatePassword(v, req.Password)
	}
	return v.Err()
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Bio:          req.Bio,
	}
	if err := h.store.CreateUser(r.Context(), &user); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.log.Info("user registered", zap.Uint("user_id", user.ID))
	writeJSON(w, http.StatusCreated, &user)
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token exchanges credentials for an access/refresh pair.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	v := access.Validation{}
	if req.Email == "" {
		v.Add("email", "This field is required.")
	}
	if req.Password == "" {
		v.Add("password", "This field is required.")
	}
	if err := v.Err(); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	invalid := func() {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "No active account found with the given credentials"})
	}
	user, err := h.store.UserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if errors.Is(err, access.ErrNotFound) {
		invalid()
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		invalid()
		return
	}

	pair, err := h.tokens.Issue(user)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.TouchLastLogin(r.Context(), user.ID, time.Now()); err != nil {
		h.log.Warn("update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if req.Refresh == "" {
		writeError(w, r, h.log, access.Invalid("refresh", "This field is required."))
		return
	}

	pair, userID, err := h.tokens.Rotate(r.Context(), req.Refresh)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Token is invalid or expired"})
		return
	}
	if _, err := h.store.UserByID(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if req.Refresh == "" {
		writeError(w, r, h.log, access.Invalid("refresh", "This field is required."))
		return
	}
	if err := h.tokens.Revoke(r.Context(), req.Refresh); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Token is invalid or expired"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.GetUserFromContext(r.Context()))
}

type profileRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Avatar    *string `json:"avatar"`
}

// UpdateProfile serves both PUT and PATCH; fields left out are unchanged.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	user := *middleware.GetUserFromContext(r.Context())
	v := access.Validation{}
	if req.Username != nil {
		if user.Username = strings.TrimSpace(*req.Username); user.Username == "" {
			v.Add("username", "This field may not be blank.")
		}
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(strings.ToLower(*req.Email))
		if !strings.Contains(user.Email, "@") {
			v.Add("email", "Enter a valid email address.")
		}
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}
	if err := v.Err(); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	if err := h.store.UpdateUser(r.Context(), &user); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, &user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	// Verify current password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		writeError(w, r, h.log, access.Invalid("current_password", "Current password is incorrect."))
		return
	}

	v := access.Validation{}
	if req.NewPassword != req.ConfirmPassword {
		v.Add("new_password", "Password fields didn't match.")
	}
	validatePassword(v, req.NewPassword)
	if err := v.Err(); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.SetPassword(r.Context(), user.ID, string(hashedPassword)); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteProfile removes the caller's account.
func (h *AuthHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	keys, err := h.store.DeleteUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	removeBlobs(r, h.blobs, h.log, keys)
	h.log.Info("user deleted", zap.Uint("user_id", user.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
