package models

type BillingConfig struct {
	SecretKey     string `json:"secret_key" yaml:"secret_key"`
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
	SuccessURL    string `json:"success_url" yaml:"success_url"`
	CancelURL     string `json:"cancel_url" yaml:"cancel_url"`
}

// Enabled reports whether Stripe calls can be made.
func (b *BillingConfig) Enabled() bool {
	return b != nil && b.SecretKey != ""
}
