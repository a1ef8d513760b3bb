package twilio

import (
	"net/http"

	twilioclient "github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's HMAC signature on webhook requests.
const SignatureHeader = "X-Twilio-Signature"

// WebhookValidator checks provider signatures on incoming webhook requests.
// The signature covers the full public URL plus the sorted form parameters,
// so the validator must know the callback base the provider was given.
type WebhookValidator struct {
	validator  twilioclient.RequestValidator
	publicBase string
}

// NewWebhookValidator creates a validator for webhooks signed with the given
// auth token and delivered under the given public base URL.
func NewWebhookValidator(authToken, callbackBaseURL string) *WebhookValidator {
	return &WebhookValidator{
		validator:  twilioclient.NewRequestValidator(authToken),
		publicBase: trimBase(callbackBaseURL),
	}
}

// Validate reports whether the request carries a valid provider signature.
// It parses the form body as a side effect, which is what the downstream
// handler wants anyway.
func (v *WebhookValidator) Validate(r *http.Request) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return v.validator.Validate(v.publicBase+r.URL.RequestURI(), params, signature)
}
