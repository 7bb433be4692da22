// Package natsbus feeds NATS messages through a keyed executor.
//
// Every message carries its ordering key in the Keyseq-Key header (or uses
// its subject when the header is absent). Messages that share a key are
// handled one at a time in the order the subscription received them;
// messages with different keys are handled concurrently.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/core/failfast"
	"github.com/fluxorio/keyseq/pkg/keyseq"
)

// DefaultKeyHeader is the header holding a message's ordering key.
const DefaultKeyHeader = "Keyseq-Key"

// ErrNoSubject is returned by Subscribe when Config.Subject is empty.
var ErrNoSubject = errors.New("natsbus: subject is required")

// Submitter is the part of *keyseq.Executor the subscription needs.
type Submitter interface {
	Submit(key string, job keyseq.Job) error
}

// Handler processes one message on the worker that owns its key.
type Handler func(key string, msg *nats.Msg) error

// Config configures a keyed subscription
type Config struct {
	// Subject may contain wildcards.
	Subject string `yaml:"subject"`

	// Queue, when set, joins a queue group so each message reaches one member.
	Queue string `yaml:"queue"`

	// KeyHeader names the key header. Default: DefaultKeyHeader.
	KeyHeader string `yaml:"key_header"`

	// Logger default: core.NewDefaultLogger().
	Logger core.Logger `yaml:"-"`
}

// Connect opens a NATS connection with an optional client name.
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if name != "" {
			o.Name = name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", url, err)
	}
	return nc, nil
}

// Stats counts what a subscription did with its messages.
type Stats struct {
	Received int64 `json:"received"`
	Handled  int64 `json:"handled"`
	Failed   int64 `json:"failed"`
	Rejected int64 `json:"rejected"` // the executor refused the message
}

// Subscription is a keyed NATS subscription.
type Subscription struct {
	sub       *nats.Subscription
	exec      Submitter
	handler   Handler
	keyHeader string
	logger    core.Logger

	received atomic.Int64
	handled  atomic.Int64
	failed   atomic.Int64
	rejected atomic.Int64
}

// Subscribe starts delivering messages on cfg.Subject to h through exec.
func Subscribe(nc *nats.Conn, exec Submitter, cfg Config, h Handler) (*Subscription, error) {
	failfast.NotNil(nc, "nats connection")
	failfast.NotNil(exec, "executor")
	failfast.NotNil(h, "handler")
	if cfg.Subject == "" {
		return nil, ErrNoSubject
	}
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = DefaultKeyHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}

	s := &Subscription{
		exec:      exec,
		handler:   h,
		keyHeader: cfg.KeyHeader,
		logger:    cfg.Logger.WithFields(map[string]interface{}{"subject": cfg.Subject}),
	}

	var err error
	if cfg.Queue != "" {
		s.sub, err = nc.QueueSubscribe(cfg.Subject, cfg.Queue, s.onMsg)
	} else {
		s.sub, err = nc.Subscribe(cfg.Subject, s.onMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("natsbus: subscribe %s: %w", cfg.Subject, err)
	}
	return s, nil
}

// onMsg runs on the subscription's delivery goroutine, so Submit sees
// messages in arrival order.
func (s *Subscription) onMsg(msg *nats.Msg) {
	s.received.Add(1)
	key := s.keyOf(msg)

	err := s.exec.Submit(key, func() {
		if err := s.handler(key, msg); err != nil {
			s.failed.Add(1)
			s.logger.Warnf("handler failed for key %q: %v", key, err)
			return
		}
		s.handled.Add(1)
	})
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warnf("message for key %q rejected: %v", key, err)
	}
}

func (s *Subscription) keyOf(msg *nats.Msg) string {
	if msg.Header != nil {
		if key := msg.Header.Get(s.keyHeader); key != "" {
			return key
		}
	}
	return msg.Subject
}

// Stats returns the subscription's counters.
func (s *Subscription) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Handled:  s.handled.Load(),
		Failed:   s.failed.Load(),
		Rejected: s.rejected.Load(),
	}
}

// Close drains the subscription: messages already buffered by the client
// are still submitted. It waits for the drain until ctx is done. Jobs
// already submitted finish when the executor is stopped.
func (s *Subscription) Close(ctx context.Context) error {
	if err := s.sub.Drain(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("natsbus: drain: %w", err)
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for s.sub.IsValid() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Publish sends data on subject with key in the DefaultKeyHeader header.
func Publish(nc *nats.Conn, subject, key string, data []byte) error {
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(DefaultKeyHeader, key)
	return nc.PublishMsg(msg)
}
