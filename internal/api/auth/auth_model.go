package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest represents the login request body. Identifier is matched
// against username first, then email.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse represents the login response body.
type LoginResponse struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	RedirectTo string `json:"redirect_to"`
	Message    string `json:"message"`
}

type RegisterRequest struct {
	Firstname       string `json:"firstname"`
	Lastname        string `json:"lastname"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChangePasswordRequest represents the change password request body.
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AdminSetPasswordRequest is the privileged override body; no old password.
type AdminSetPasswordRequest struct {
	UserID      string `json:"user_id"`
	NewPassword string `json:"new_password"`
}

type AdminResetRequest struct {
	UserID string `json:"user_id"`
}

type AdminResetResponse struct {
	ResetToken string `json:"reset_token"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetClaims are the claims carried by an admin-issued password reset token.
type ResetClaims struct {
	UserID  string `json:"uid"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

const resetPurpose = "password_reset"
