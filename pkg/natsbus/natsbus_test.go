package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/keyseq"
)

func runTestNATSServer(t *testing.T) *natssrv.Server {
	t.Helper()

	opts := &natssrv.Options{
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	s, err := natssrv.NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(func() {
		s.Shutdown()
	})
	return s
}

func connect(t *testing.T, s *natssrv.Server) *nats.Conn {
	t.Helper()
	nc, err := Connect(s.ClientURL(), "natsbus-test")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func newExecutor(t *testing.T, workers int) *keyseq.Executor {
	t.Helper()
	x, err := keyseq.NewWithConfig(keyseq.Config{Workers: workers, Logger: core.NopLogger()})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(x.Stop)
	return x
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscribe_PerKeyOrder(t *testing.T) {
	s := runTestNATSServer(t)
	nc := connect(t, s)
	x := newExecutor(t, 4)

	const keys, perKey = 5, 50
	var mu sync.Mutex
	seen := make(map[string][]int)
	sub, err := Subscribe(nc, x, Config{Subject: "orders", Logger: core.NopLogger()},
		func(key string, msg *nats.Msg) error {
			n, err := strconv.Atoi(string(msg.Data))
			if err != nil {
				return err
			}
			mu.Lock()
			seen[key] = append(seen[key], n)
			mu.Unlock()
			return nil
		})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for i := 0; i < perKey; i++ {
		for k := 0; k < keys; k++ {
			if err := Publish(nc, "orders", fmt.Sprintf("customer-%d", k), []byte(strconv.Itoa(i))); err != nil {
				t.Fatalf("Publish: %v", err)
			}
		}
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	waitFor(t, "all messages", func() bool { return sub.Stats().Handled == keys*perKey })
	if err := sub.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != keys {
		t.Fatalf("got %d keys, want %d", len(seen), keys)
	}
	for key, seq := range seen {
		for i, n := range seq {
			if n != i {
				t.Fatalf("key %s out of order: %v", key, seq)
			}
		}
	}
}

func TestSubscribe_SubjectFallback(t *testing.T) {
	s := runTestNATSServer(t)
	nc := connect(t, s)
	x := newExecutor(t, 2)

	keys := make(chan string, 2)
	_, err := Subscribe(nc, x, Config{Subject: "events.*", Queue: "workers", Logger: core.NopLogger()},
		func(key string, _ *nats.Msg) error {
			keys <- key
			return nil
		})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := nc.Publish("events.login", []byte("x")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case got := <-keys:
		if got != "events.login" {
			t.Errorf("key = %q, want events.login", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not handled")
	}
}

func TestSubscribe_CustomKeyHeader(t *testing.T) {
	s := runTestNATSServer(t)
	nc := connect(t, s)
	x := newExecutor(t, 2)

	keys := make(chan string, 1)
	_, err := Subscribe(nc, x, Config{Subject: "jobs", KeyHeader: "Tenant", Logger: core.NopLogger()},
		func(key string, _ *nats.Msg) error {
			keys <- key
			return nil
		})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	msg := &nats.Msg{Subject: "jobs", Header: nats.Header{}}
	msg.Header.Set("Tenant", "acme")
	if err := nc.PublishMsg(msg); err != nil {
		t.Fatalf("PublishMsg: %v", err)
	}
	select {
	case got := <-keys:
		if got != "acme" {
			t.Errorf("key = %q, want acme", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not handled")
	}
}

func TestSubscribe_HandlerErrorAndRejection(t *testing.T) {
	s := runTestNATSServer(t)
	nc := connect(t, s)
	x := newExecutor(t, 1)

	sub, err := Subscribe(nc, x, Config{Subject: "work", Logger: core.NopLogger()},
		func(string, *nats.Msg) error { return errors.New("bad payload") })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	_ = Publish(nc, "work", "k", nil)
	_ = nc.Flush()
	waitFor(t, "failed message", func() bool { return sub.Stats().Failed == 1 })

	x.Stop()
	_ = Publish(nc, "work", "k", nil)
	_ = nc.Flush()
	waitFor(t, "rejected message", func() bool { return sub.Stats().Rejected == 1 })

	st := sub.Stats()
	if st.Received != 2 || st.Handled != 0 {
		t.Errorf("Stats() = %+v, want 2 received, 0 handled", st)
	}
}

func TestSubscribe_NoSubject(t *testing.T) {
	s := runTestNATSServer(t)
	nc := connect(t, s)
	x := newExecutor(t, 1)

	_, err := Subscribe(nc, x, Config{}, func(string, *nats.Msg) error { return nil })
	if !errors.Is(err, ErrNoSubject) {
		t.Errorf("Subscribe() error = %v, want %v", err, ErrNoSubject)
	}
}

func TestSubscribe_NilHandlerPanics(t *testing.T) {
	s := runTestNATSServer(t)
	nc := connect(t, s)
	x := newExecutor(t, 1)

	defer func() {
		if recover() == nil {
			t.Error("Subscribe with nil handler should panic")
		}
	}()
	_, _ = Subscribe(nc, x, Config{Subject: "x"}, nil)
}
