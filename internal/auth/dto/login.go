package dto

type LoginInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginCheck is the result of the pre-password throttling gate.
type LoginCheck struct {
	Allowed bool
	Reason  string
}

type LoginResult struct {
	User      UserOutput `json:"user"`
	Tokens    TokenPair  `json:"tokens"`
	SessionID string     `json:"session_id"`
}
