package authapi

import "time"

type registrationRequest struct {
	Login    string `json:"login" validate:"required,min=3,max=10,loginchars"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"required,emailaddr"`
}

type loginRequest struct {
	LoginOrEmail string `json:"loginOrEmail" validate:"required"`
	Password     string `json:"password" validate:"required"`
}

type confirmationRequest struct {
	Code string `json:"code" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,emailaddr"`
}

type newPasswordRequest struct {
	NewPassword  string `json:"newPassword" validate:"required"`
	RecoveryCode string `json:"recoveryCode" validate:"required"`
}

type accessResponse struct {
	AccessToken string `json:"accessToken"`
}

type meResponse struct {
	Email  string `json:"email"`
	Login  string `json:"login"`
	UserID string `json:"userId"`
}

type deviceResponse struct {
	IP             string    `json:"ip"`
	Title          string    `json:"title"`
	LastActiveDate time.Time `json:"lastActiveDate"`
	DeviceID       string    `json:"deviceId"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
