// Package notify delivers outbound candidate notifications. Delivery is best
// effort: a failed send never affects state that was already committed.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/assessment-engine/internal/models"
)

// Message is an outbound notification
type Message struct {
	// Key identifies the message for de-duplication across retries
	Key       string    `json:"key"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier sends a single message
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ResultMessage builds the result notification for a graded session
func ResultMessage(c *models.Candidate, sessionID string, score float64, level models.Level) Message {
	name := c.Name
	if name == "" {
		name = c.Email
	}

	return Message{
		Key:     "result:" + sessionID,
		To:      c.Email,
		Subject: "Your Assessment Results",
		Body: fmt.Sprintf(
			"Hello %s,\n\nYou have completed your assessment.\n\nScore: %.2f%%\nLevel Achieved: %s\n\nThank you.",
			name, score, level,
		),
		CreatedAt: time.Now().UTC(),
	}
}

// AsyncOptions configures an Async dispatcher
type AsyncOptions struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// Async sends messages on background goroutines, detached from the
// caller's context, retrying with doubling backoff
type Async struct {
	next Notifier
	opts AsyncOptions
	wg   sync.WaitGroup
}

// NewAsync wraps a Notifier for fire-and-forget delivery
func NewAsync(next Notifier, opts AsyncOptions) *Async {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	return &Async{next: next, opts: opts}
}

// Notify schedules msg for delivery and returns immediately
func (a *Async) Notify(msg Message) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.deliver(msg)
	}()
}

// Send implements Notifier by scheduling the message; it never fails
func (a *Async) Send(_ context.Context, msg Message) error {
	a.Notify(msg)
	return nil
}

// Wait blocks until all scheduled deliveries have finished
func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) deliver(msg Message) {
	backoff := a.opts.Backoff

	for attempt := 1; attempt <= a.opts.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), a.opts.Timeout)
		err := a.next.Send(ctx, msg)
		cancel()

		if err == nil {
			slog.Debug("notification delivered", "key", msg.Key, "to", msg.To, "attempt", attempt)
			return
		}

		slog.Warn("notification delivery failed",
			"error", err,
			"key", msg.Key,
			"attempt", attempt,
		)

		if attempt < a.opts.Attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	slog.Error("notification dropped", "key", msg.Key, "to", msg.To)
}

// LogNotifier writes messages to the structured log instead of sending them
type LogNotifier struct{}

// Send logs the message
func (LogNotifier) Send(_ context.Context, msg Message) error {
	slog.Info("notification",
		"key", msg.Key,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
