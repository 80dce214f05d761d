package domain

import (
	"fmt"
	"os"
	"strings"
)

// Provider kinds.
const (
	ProviderKindHTTP   = "http"
	ProviderKindTwilio = "twilio"
)

// Outbound body encodings for HTTP providers.
const (
	EncodingForm = "form"
	EncodingJSON = "json"
)

// ProviderConfig declares one entry of the fallback list. Order in the list is priority.
type ProviderConfig struct {
	Name     string `mapstructure:"name" json:"name"`
	Kind     string `mapstructure:"kind" json:"kind"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	Encoding string `mapstructure:"encoding" json:"encoding"`

	PhoneField   string `mapstructure:"phone_field" json:"phone_field"`
	MessageField string `mapstructure:"message_field" json:"message_field"`

	// CredentialFields receive the credential value; empty credential means the fields are omitted.
	CredentialFields []string `mapstructure:"credential_fields" json:"credential_fields,omitempty"`
	Credential       string   `mapstructure:"credential" json:"-"`
	// CredentialEnv names an environment variable that overrides Credential when set.
	CredentialEnv string `mapstructure:"credential_env" json:"credential_env,omitempty"`

	Extra map[string]string `mapstructure:"extra" json:"extra,omitempty"`

	// Success names the predicate applied to the parsed response body.
	Success string `mapstructure:"success" json:"success"`
	// StatusURL is an optional delivery-status endpoint; "{id}" is replaced with the external id.
	StatusURL string `mapstructure:"status_url" json:"status_url,omitempty"`

	AccountSID string `mapstructure:"account_sid" json:"account_sid,omitempty"`
}

// ResolvedCredential returns the credential, preferring the environment variable named by CredentialEnv.
func (c ProviderConfig) ResolvedCredential() string {
	if c.CredentialEnv != "" {
		if v, ok := os.LookupEnv(c.CredentialEnv); ok {
			return v
		}
	}
	return c.Credential
}

// Normalize fills kind, encoding, field names and predicate defaults.
func (c ProviderConfig) Normalize() ProviderConfig {
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	if c.Kind == "" {
		c.Kind = ProviderKindHTTP
	}
	c.Encoding = strings.ToLower(strings.TrimSpace(c.Encoding))
	if c.Encoding == "" {
		c.Encoding = EncodingForm
	}
	if c.PhoneField == "" {
		c.PhoneField = "phone"
	}
	if c.MessageField == "" {
		c.MessageField = "message"
	}
	if c.Success == "" {
		c.Success = "default"
	}
	return c
}

// Validate checks a normalized config for the fields its kind requires.
func (c ProviderConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("provider config: name is required")
	}
	switch c.Kind {
	case ProviderKindHTTP:
		if c.Endpoint == "" {
			return fmt.Errorf("provider %q: endpoint is required", c.Name)
		}
		if c.Encoding != EncodingForm && c.Encoding != EncodingJSON {
			return fmt.Errorf("provider %q: unsupported encoding %q", c.Name, c.Encoding)
		}
	case ProviderKindTwilio:
		if c.AccountSID == "" {
			return fmt.Errorf("provider %q: account_sid is required", c.Name)
		}
		if c.Extra["from"] == "" {
			return fmt.Errorf("provider %q: extra.from is required", c.Name)
		}
	default:
		return fmt.Errorf("provider %q: unknown kind %q", c.Name, c.Kind)
	}
	return nil
}

// DefaultProviders is the built-in fallback list used when configuration does not define one.
func DefaultProviders() []ProviderConfig {
	textbelt := func(name, key string) ProviderConfig {
		return ProviderConfig{
			Name:             name,
			Kind:             ProviderKindHTTP,
			Endpoint:         "https://textbelt.com/text",
			Encoding:         EncodingForm,
			PhoneField:       "phone",
			MessageField:     "message",
			CredentialFields: []string{"key"},
			Credential:       key,
			Success:          "textbelt",
			StatusURL:        "https://textbelt.com/status/{id}",
		}
	}
	return []ProviderConfig{
		textbelt("textbelt-official", "textbelt"),
		textbelt("textbelt-demo", "demo"),
		textbelt("textbelt-free-alt", "free"),
		textbelt("textbelt-test", "test"),
		{
			Name:         "freesms-eu",
			Kind:         ProviderKindHTTP,
			Endpoint:     "https://freesms.eu.org/api/send",
			Encoding:     EncodingForm,
			PhoneField:   "to",
			MessageField: "text",
			Extra:        map[string]string{"from": "SMS-Online"},
			Success:      "freesms",
		},
		{
			Name:             "sms77-demo",
			Kind:             ProviderKindHTTP,
			Endpoint:         "https://gateway.sms77.io/api/sms",
			Encoding:         EncodingForm,
			PhoneField:       "to",
			MessageField:     "text",
			CredentialFields: []string{"p"},
			Credential:       "demo",
			Extra:            map[string]string{"from": "SMS-Online"},
			Success:          "sms77",
		},
		{
			Name:             "smsapi-demo",
			Kind:             ProviderKindHTTP,
			Endpoint:         "https://api.smsapi.com/sms.do",
			Encoding:         EncodingForm,
			PhoneField:       "to",
			MessageField:     "message",
			CredentialFields: []string{"username", "password"},
			Credential:       "demo",
			Extra:            map[string]string{"from": "SMS-Online", "format": "json"},
			Success:          "smsapi",
		},
	}
}
