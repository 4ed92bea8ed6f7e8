package models

type AuthConfig struct {
	CookieName   string `json:"cookie_name" yaml:"cookie_name"`
	SessionTTLHr int    `json:"session_ttl_hours" yaml:"session_ttl_hours"`
	SecureCookie *bool  `json:"secure_cookie,omitempty" yaml:"secure_cookie,omitempty"`
	BcryptCost   int    `json:"bcrypt_cost,omitzero" yaml:"bcrypt_cost,omitempty"`
}
