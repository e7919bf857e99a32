package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultMaxAttempts    = 5
	defaultReconnectDelay = 2 * time.Second
)

// ErrReconnectExhausted is returned once the attempt budget is spent.
var ErrReconnectExhausted = errors.New("chat: reconnect attempts exhausted")

// Dialer opens one socket connection. *websocket.Dialer is adapted via
// DialFunc; tests substitute their own.
type Dialer interface {
	Dial(ctx context.Context) (Conn, ReadLoop, error)
}

// ReadLoop pumps inbound frames until the connection drops; it returns the
// terminal read error.
type ReadLoop func(ctx context.Context, apply func(Envelope)) error

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context) (Conn, ReadLoop, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context) (Conn, ReadLoop, error) {
	return f(ctx)
}

// NewWebsocketDialer dials the chat endpoint with a bearer token and yields
// a read loop over the gorilla connection.
func NewWebsocketDialer(url, accessToken string) Dialer {
	return DialFunc(func(ctx context.Context) (Conn, ReadLoop, error) {
		header := http.Header{}
		if accessToken != "" {
			header.Set("Authorization", "Bearer "+accessToken)
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, nil, fmt.Errorf("chat: dial %s: %w", url, err)
		}
		loop := func(ctx context.Context, apply func(Envelope)) error {
			for {
				var env Envelope
				if err := conn.ReadJSON(&env); err != nil {
					return err
				}
				apply(env)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
		return conn, loop, nil
	})
}

// Reconnector keeps a chat socket alive across drops with a fixed attempt
// budget and a linearly increasing delay between attempts. A successful
// connection resets the budget.
type Reconnector struct {
	dialer      Dialer
	apply       func(Envelope)
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// ReconnectorOption customises Reconnector behaviour.
type ReconnectorOption func(*Reconnector)

// WithMaxAttempts overrides the consecutive failure budget.
func WithMaxAttempts(n int) ReconnectorOption {
	return func(r *Reconnector) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBaseDelay overrides the delay unit between attempts.
func WithBaseDelay(d time.Duration) ReconnectorOption {
	return func(r *Reconnector) {
		if d > 0 {
			r.baseDelay = d
		}
	}
}

// WithSleep injects the waiting primitive, primarily for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ReconnectorOption {
	return func(r *Reconnector) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewReconnector constructs a Reconnector delivering frames to apply.
func NewReconnector(dialer Dialer, apply func(Envelope), opts ...ReconnectorOption) (*Reconnector, error) {
	if dialer == nil {
		return nil, errors.New("chat: dialer is required")
	}
	if apply == nil {
		return nil, errors.New("chat: apply func is required")
	}
	r := &Reconnector{
		dialer:      dialer,
		apply:       apply,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultReconnectDelay,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Run dials and pumps until the context is cancelled or the attempt budget
// is exhausted. The n-th consecutive failed attempt waits n times the base
// delay before the next try.
func (r *Reconnector) Run(ctx context.Context) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, loop, err := r.dialer.Dial(ctx)
		if err != nil {
			failures++
			if failures >= r.maxAttempts {
				return fmt.Errorf("%w: last error: %v", ErrReconnectExhausted, err)
			}
			if err := r.sleep(ctx, time.Duration(failures)*r.baseDelay); err != nil {
				return err
			}
			continue
		}

		failures = 0
		readErr := loop(ctx, r.apply)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		if failures >= r.maxAttempts {
			return fmt.Errorf("%w: last error: %v", ErrReconnectExhausted, readErr)
		}
		if err := r.sleep(ctx, time.Duration(failures)*r.baseDelay); err != nil {
			return err
		}
	}
}
