package dto

type ForgotPasswordInput struct {
	Email string `json:"email"`
}

type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type VerifyEmailInput struct {
	Token string `json:"token"`
}

type ResendVerificationInput struct {
	Email string `json:"email"`
}

type LockAccountInput struct {
	Email   string `json:"email"`
	Minutes int    `json:"minutes"`
}

type UnlockAccountInput struct {
	Email string `json:"email"`
}
