package provider

import (
	"math/rand/v2"
	"net/http"

	"github.com/google/uuid"
)

// Decorator mutates outbound request headers. It never influences the fallback algorithm.
type Decorator func(h http.Header)

// DefaultUserAgent identifies the relay to upstream providers.
const DefaultUserAgent = "sms-relay/2.0"

// Chain applies decorators in order, skipping nil entries.
func Chain(decorators ...Decorator) Decorator {
	return func(h http.Header) {
		for _, d := range decorators {
			if d != nil {
				d(h)
			}
		}
	}
}

// StaticUserAgent sets a fixed User-Agent.
func StaticUserAgent(ua string) Decorator {
	return func(h http.Header) {
		h.Set("User-Agent", ua)
	}
}

// RotateUserAgents picks a User-Agent at random from agents for every request.
func RotateUserAgents(agents []string) Decorator {
	if len(agents) == 0 {
		return nil
	}
	return func(h http.Header) {
		h.Set("User-Agent", agents[rand.IntN(len(agents))])
	}
}

// RequestID tags every outbound call with a fresh X-Request-ID.
func RequestID() Decorator {
	return func(h http.Header) {
		h.Set("X-Request-ID", uuid.NewString())
	}
}

// DefaultDecorator is used when none is injected.
func DefaultDecorator() Decorator {
	return Chain(StaticUserAgent(DefaultUserAgent), RequestID())
}
