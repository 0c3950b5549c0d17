package payment

import "strings"

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"
)

// Credentials are the per-mode secrets of a provider.
type Credentials struct {
	Key         string `mapstructure:"key"`
	ClientID    string `mapstructure:"client_id"`
	MerchantKey string `mapstructure:"merchant_key"`
	BaseURL     string `mapstructure:"base_url"`
}

// ProviderConfig is the configuration block of one gateway.
type ProviderConfig struct {
	Mode          string      `mapstructure:"mode"`
	Currency      string      `mapstructure:"currency"`
	Sandbox       Credentials `mapstructure:"sandbox"`
	Live          Credentials `mapstructure:"live"`
	WebhookSecret string      `mapstructure:"webhook_secret"`
	Lang          string      `mapstructure:"lang"`

	// CallbackBaseURL is the public base URL of this API, used to build
	// return, cancel and notification URLs.
	CallbackBaseURL string `mapstructure:"-"`
}

func (c ProviderConfig) IsLive() bool {
	return strings.EqualFold(c.Mode, ModeLive)
}

// Active returns the credentials of the configured mode. Anything but
// "live" selects the sandbox.
func (c ProviderConfig) Active() Credentials {
	if c.IsLive() {
		return c.Live
	}
	return c.Sandbox
}

// BaseURL returns the active base URL without a trailing slash.
func (c ProviderConfig) BaseURL() string {
	return strings.TrimRight(c.Active().BaseURL, "/")
}

// ReturnURL builds the browser return URL of a provider for an order.
func (c ProviderConfig) ReturnURL(provider string, orderID int64) string {
	return c.callbackURL(provider, "return", orderID)
}

// CancelURL builds the browser cancel URL of a provider for an order.
func (c ProviderConfig) CancelURL(provider string, orderID int64) string {
	return c.callbackURL(provider, "return", orderID) + "&cancelled=1"
}

// WebhookURL builds the server-to-server notification URL of a provider.
func (c ProviderConfig) WebhookURL(provider string) string {
	return strings.TrimRight(c.CallbackBaseURL, "/") + "/payments/" + provider + "/webhook"
}

func (c ProviderConfig) callbackURL(provider, kind string, orderID int64) string {
	return strings.TrimRight(c.CallbackBaseURL, "/") + "/payments/" + provider + "/" + kind +
		"?order_id=" + itoa(orderID)
}
