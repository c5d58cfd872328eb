// Package notify delivers one-time codes to recovery contacts. A Dispatcher
// routes each channel to a Sender and retries transient failures; a delivery
// that still fails is reported as common.ErrDelivery so the caller can offer
// a resend.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/logging"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/sethvargo/go-retry"
)

// Notifier sends code to destination over channel.
type Notifier interface {
	Notify(ctx context.Context, channel models.Channel, destination, code string) error
}

// Sender is a single transport such as SMS or e-mail.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Message is what a Sender delivers.
type Message struct {
	Subject string
	Body    string
}

// NewMessage renders the verification message for code.
func NewMessage(code string, ttl time.Duration) Message {
	return Message{
		Subject: "Your Vaulture verification code",
		Body:    fmt.Sprintf("Your Vaulture verification code is %s. It expires in %d minutes.", code, int(ttl.Minutes())),
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, channel models.Channel, destination, code string) error

func (f NotifierFunc) Notify(ctx context.Context, channel models.Channel, destination, code string) error {
	return f(ctx, channel, destination, code)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

const (
	DefaultRetries = 2
	DefaultBackoff = 200 * time.Millisecond
)

// Dispatcher implements Notifier over one Sender per channel.
type Dispatcher struct {
	senders map[models.Channel]Sender
	retries uint64
	backoff time.Duration
	ttl     time.Duration
	log     logging.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRetries sets how many times a failed send is retried, waiting an
// exponentially growing delay starting at backoff.
func WithRetries(n uint64, backoff time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.retries = n
		if backoff > 0 {
			d.backoff = backoff
		}
	}
}

// WithCodeTTL sets the validity shown in messages.
func WithCodeTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.ttl = ttl }
}

func NewDispatcher(log logging.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[models.Channel]Sender),
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		ttl:     10 * time.Minute,
		log:     log,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Register routes channel to s.
func (d *Dispatcher) Register(channel models.Channel, s Sender) {
	d.senders[channel] = s
}

// Notify sends the code, retrying failures that are not Permanent.
func (d *Dispatcher) Notify(ctx context.Context, channel models.Channel, destination, code string) error {
	s, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("%w: no sender for channel %q", common.ErrDelivery, channel)
	}
	msg := NewMessage(code, d.ttl)

	attempt := 0
	b := retry.WithMaxRetries(d.retries, retry.NewExponential(d.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := s.Send(ctx, destination, msg)
		if err == nil {
			return nil
		}
		d.log.Warn(ctx, "send failed", "channel", string(channel), "attempt", attempt, "error", err)
		var p *permanentError
		if errors.As(err, &p) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		d.log.Error(ctx, "delivery failed", "channel", string(channel), "attempts", attempt)
		return fmt.Errorf("%w: %s: %w", common.ErrDelivery, channel, err)
	}
	d.log.Info(ctx, "code delivered", "channel", string(channel))
	return nil
}
