package api

import (
	"context"
	"log/slog"

	"github.com/pavelanni/mocktest/internal/model"
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DOB      string `json:"dob,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

type message struct {
	Msg string `json:"msg"`
}

// Login signs in with email and password. On success the backend's session
// cookie is captured by the credential provider.
func (c *Client) Login(ctx context.Context, email, password string) (model.Account, error) {
	var resp struct {
		Msg string `json:"msg"`
		model.Account
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "/auth/login", body, &resp); err != nil {
		return model.Account{}, err
	}
	return resp.Account, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (model.Profile, error) {
	var resp struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		DOB      string `json:"dob"`
		Gender   string `json:"gender"`
	}
	if err := c.post(ctx, "/auth/signup", req, &resp); err != nil {
		return model.Profile{}, err
	}
	return model.Profile{
		ID:       resp.ID,
		Username: resp.Username,
		Email:    resp.Email,
		Details:  model.ProfileDetails{FullName: resp.FullName, DOB: resp.DOB, Gender: resp.Gender},
	}, nil
}

// ForgotPassword asks the backend to send a one-time password to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp message
	err := c.post(ctx, "/auth/forgot-password", map[string]string{"email": email}, &resp)
	return resp.Msg, err
}

// VerifyOTP checks the one-time password sent to email.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	var resp message
	err := c.post(ctx, "/auth/verify-otp", map[string]string{"email": email, "otp": otp}, &resp)
	return resp.Msg, err
}

// ResetPassword sets a new password after OTP verification.
func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) (string, error) {
	var resp message
	body := map[string]string{"email": email, "new_password": newPassword}
	err := c.post(ctx, "/auth/reset-password", body, &resp)
	return resp.Msg, err
}

// Profile returns the signed-in user. An auth-kind error means the stored
// credentials are missing or no longer valid.
func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	var p model.Profile
	if err := c.get(ctx, "/auth/profile", &p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// UpdateProfile replaces the editable profile fields.
func (c *Client) UpdateProfile(ctx context.Context, d model.ProfileDetails) (model.ProfileDetails, error) {
	var resp struct {
		Msg     string               `json:"msg"`
		Profile model.ProfileDetails `json:"profile"`
	}
	if err := c.put(ctx, "/auth/profile", d, &resp); err != nil {
		return model.ProfileDetails{}, err
	}
	return resp.Profile, nil
}

// Logout ends the session. Local credentials are dropped even when the
// backend call fails; only a failure to drop them is returned.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/auth/logout", nil, nil); err != nil {
		slog.Warn("logout request failed", "error", err)
	}
	if c.creds == nil {
		return nil
	}
	return c.creds.Clear()
}
