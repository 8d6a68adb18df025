// Package notify delivers session lifecycle messages to chat channels,
// retrying transient transport failures a bounded number of times.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
)

// Transport delivers a single message to a chat channel.
type Transport interface {
	Deliver(ctx context.Context, channelID, text string) error
}

// errTransient tags delivery failures worth retrying.
var errTransient = errors.New("transient delivery failure")

// Transient wraps err so the dispatcher retries the delivery.
func Transient(err error) error {
	return fmt.Errorf("%w: %v", errTransient, err)
}

// isTransient reports whether a failure should be retried: anything
// tagged with Transient, plus network timeouts.
func isTransient(err error) bool {
	if errors.Is(err, errTransient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Dispatcher sends messages over a Transport with bounded retries.
// Retry exhaustion is reported to the caller but by contract never
// unwinds the state machine's completion transition.
type Dispatcher struct {
	transport Transport
	retries   func() int
}

// NewDispatcher builds a dispatcher. retries returns the number of
// retry attempts after the first try; it is re-read per Send so a
// hot-reloaded config applies immediately.
func NewDispatcher(transport Transport, retries func() int) *Dispatcher {
	return &Dispatcher{transport: transport, retries: retries}
}

// StaticRetries wraps a fixed retry count.
func StaticRetries(n int) func() int {
	return func() int { return n }
}

// Send delivers text to channelID, retrying transient failures.
func (d *Dispatcher) Send(ctx context.Context, channelID, text string) error {
	maxRetries := d.retries()
	if maxRetries < 0 {
		maxRetries = 0
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = d.transport.Deliver(ctx, channelID, text)
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt >= maxRetries {
			break
		}
		log.Warn().
			Err(err).
			Str("channel", channelID).
			Int("attempt", attempt+1).
			Msg("Transient delivery failure, retrying")
	}

	log.Error().Err(err).Str("channel", channelID).Msg("Message delivery failed")
	return fmt.Errorf("deliver to %s: %w", channelID, err)
}
