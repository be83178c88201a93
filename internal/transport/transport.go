package transport

import (
	"context"
	"errors"
)

// ErrUnavailable marks a systemic provider outage (auth failure, 5xx,
// unreachable host) as opposed to a single rejected message. The sequencer
// logs it prominently but keeps recording per-recipient failures; the
// provider may recover mid-run.
var ErrUnavailable = errors.New("message gateway unavailable")

// Message is one outbound message for one recipient.
type Message struct {
	Contact  string `json:"to"`
	Body     string `json:"body"`
	ImageURL string `json:"media_url,omitempty"`
}

// Transport delivers a single message. The provider applies its own
// retry/backoff internally; any returned error is a terminal failure for
// that recipient.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}
