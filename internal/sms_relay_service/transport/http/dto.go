package http

// SendSMSRequest is the inbound body of POST /send, as JSON or form fields.
type SendSMSRequest struct {
	Phone   string `json:"phone" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendSMSResponse is the envelope returned by the send routes.
type SendSMSResponse struct {
	Success        bool   `json:"success"`
	TextID         string `json:"textId,omitempty"`
	QuotaRemaining *int   `json:"quotaRemaining,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Error          string `json:"error,omitempty"`
	Details        string `json:"details,omitempty"`
}

// InfoResponse is returned by GET on the send routes.
type InfoResponse struct {
	Message   string   `json:"message"`
	Providers []string `json:"providers"`
	Region    string   `json:"region,omitempty"`
}

// EchoResponse is returned by /api/test.
type EchoResponse struct {
	Message  string `json:"message"`
	Method   string `json:"method"`
	Received any    `json:"received,omitempty"`
}

// GenericErrorResponse for API errors
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
