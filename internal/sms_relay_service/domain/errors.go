package domain

import (
	"errors"
	"strings"
)

var (
	// ErrMissingField indicates that the phone number or the message body was not supplied.
	ErrMissingField = errors.New("missing field")
	// ErrUpstreamUnreachable indicates a transport-level failure talking to a provider.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	// ErrUpstreamQuotaExceeded indicates the provider refused the send because a quota or rate limit was hit.
	ErrUpstreamQuotaExceeded = errors.New("upstream quota exceeded")
	// ErrUpstreamRejected indicates the provider answered but did not accept the message.
	ErrUpstreamRejected = errors.New("upstream rejected")
	// ErrAllProvidersExhausted indicates every configured provider was tried without success.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	// ErrUnexpected wraps parsing and runtime faults that are not provider outcomes.
	ErrUnexpected = errors.New("unexpected error")
)

// quotaPhrases are matched case-insensitively against provider error text.
var quotaPhrases = []string{"quota", "limit", "exceeded", "too many requests"}

// IsQuotaMessage reports whether a provider error text describes a quota or rate-limit refusal.
func IsQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range quotaPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
