package domain

// SendRequest is a single inbound send. It lives only for the duration of the call.
type SendRequest struct {
	Phone   string
	Message string
}

// MaskedPhone returns the phone number with everything after the first five characters hidden.
func (r SendRequest) MaskedPhone() string {
	if len(r.Phone) <= 5 {
		return r.Phone + "***"
	}
	return r.Phone[:5] + "***"
}

// Attempt is the outcome of a single provider call.
type Attempt struct {
	Provider       string
	Success        bool
	ExternalID     string
	QuotaRemaining *int
	// Err is set when Success is false and wraps one of the upstream sentinel errors.
	Err error
}

// SendResult is produced once per inbound request and returned to the caller as-is.
type SendResult struct {
	Success        bool
	Provider       string
	ExternalID     string
	QuotaRemaining *int
	Error          string
}
