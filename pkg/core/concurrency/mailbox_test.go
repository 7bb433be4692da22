package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestUnboundedMailbox_NeverFull(t *testing.T) {
	mailbox := NewUnboundedMailbox()

	if mailbox.Capacity() != -1 {
		t.Errorf("Capacity() = %d, want -1", mailbox.Capacity())
	}
	for i := 0; i < 10000; i++ {
		if err := mailbox.Send(i); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}
	if mailbox.Size() != 10000 {
		t.Errorf("Size() = %d, want 10000", mailbox.Size())
	}
}

// mailboxes returns one of each implementation, large enough for the shared tests.
func mailboxes() map[string]func() Mailbox {
	return map[string]func() Mailbox{
		"unbounded": NewUnboundedMailbox,
	}
}

func TestMailbox_ReceiveOrder(t *testing.T) {
	for name, newMailbox := range mailboxes() {
		t.Run(name, func(t *testing.T) {
			mailbox := newMailbox()
			ctx := context.Background()

			for i := 0; i < 50; i++ {
				mailbox.Send(i)
			}
			for i := 0; i < 50; i++ {
				msg, err := mailbox.Receive(ctx)
				if err != nil {
					t.Fatalf("Receive() error = %v", err)
				}
				if msg != i {
					t.Fatalf("Receive() = %v, want %d", msg, i)
				}
			}
		})
	}
}

func TestMailbox_TryReceive(t *testing.T) {
	for name, newMailbox := range mailboxes() {
		t.Run(name, func(t *testing.T) {
			mailbox := newMailbox()

			msg, ok, err := mailbox.TryReceive()
			if err != nil {
				t.Errorf("TryReceive() on empty mailbox error = %v", err)
			}
			if ok {
				t.Error("TryReceive() on empty mailbox should return ok=false")
			}
			if msg != nil {
				t.Errorf("TryReceive() on empty mailbox msg = %v, want nil", msg)
			}

			mailbox.Send("test")
			msg, ok, err = mailbox.TryReceive()
			if err != nil {
				t.Errorf("TryReceive() error = %v", err)
			}
			if !ok {
				t.Error("TryReceive() should return ok=true when message available")
			}
			if msg != "test" {
				t.Errorf("TryReceive() = %v, want test", msg)
			}
		})
	}
}

func TestMailbox_CloseDrains(t *testing.T) {
	for name, newMailbox := range mailboxes() {
		t.Run(name, func(t *testing.T) {
			mailbox := newMailbox()
			ctx := context.Background()

			mailbox.Send("a")
			mailbox.Send("b")
			mailbox.Close()

			if !mailbox.IsClosed() {
				t.Error("IsClosed() should return true after Close()")
			}
			if err := mailbox.Send("c"); err != ErrMailboxClosed {
				t.Errorf("Send() after close error = %v, want ErrMailboxClosed", err)
			}

			for _, want := range []string{"a", "b"} {
				msg, err := mailbox.Receive(ctx)
				if err != nil {
					t.Fatalf("Receive() after close error = %v, want queued message", err)
				}
				if msg != want {
					t.Errorf("Receive() = %v, want %v", msg, want)
				}
			}

			if _, err := mailbox.Receive(ctx); err != ErrMailboxClosed {
				t.Errorf("Receive() on drained mailbox error = %v, want ErrMailboxClosed", err)
			}
			if _, _, err := mailbox.TryReceive(); err != ErrMailboxClosed {
				t.Errorf("TryReceive() on drained mailbox error = %v, want ErrMailboxClosed", err)
			}

			mailbox.Close()
		})
	}
}

func TestMailbox_ReceiveBatch(t *testing.T) {
	for name, newMailbox := range mailboxes() {
		t.Run(name, func(t *testing.T) {
			mailbox := newMailbox()
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				mailbox.Send(i)
			}

			buf := make([]interface{}, 3)
			n, err := mailbox.ReceiveBatch(ctx, buf)
			if err != nil || n != 3 {
				t.Fatalf("ReceiveBatch() = %d, %v, want 3, nil", n, err)
			}
			n, err = mailbox.ReceiveBatch(ctx, buf)
			if err != nil || n != 2 {
				t.Fatalf("ReceiveBatch() = %d, %v, want 2, nil", n, err)
			}
			if buf[0] != 3 || buf[1] != 4 {
				t.Errorf("ReceiveBatch() buf = %v, want [3 4 ...]", buf[:2])
			}

			mailbox.Close()
			if _, err := mailbox.ReceiveBatch(ctx, buf); err != ErrMailboxClosed {
				t.Errorf("ReceiveBatch() on drained mailbox error = %v, want ErrMailboxClosed", err)
			}
		})
	}
}

func TestMailbox_ReceiveCancelled(t *testing.T) {
	for name, newMailbox := range mailboxes() {
		t.Run(name, func(t *testing.T) {
			mailbox := newMailbox()
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			if _, err := mailbox.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Receive() error = %v, want context.DeadlineExceeded", err)
			}
		})
	}
}

func TestUnboundedMailbox_WakesBlockedReceiver(t *testing.T) {
	mailbox := NewUnboundedMailbox()
	got := make(chan interface{}, 1)

	go func() {
		msg, _ := mailbox.Receive(context.Background())
		got <- msg
	}()

	time.Sleep(10 * time.Millisecond)
	mailbox.Send("wake")

	select {
	case msg := <-got:
		if msg != "wake" {
			t.Errorf("Receive() = %v, want wake", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked receiver was not woken by Send")
	}
}

func TestUnboundedMailbox_ConcurrentSenders(t *testing.T) {
	mailbox := NewUnboundedMailbox()
	const senders, perSender = 8, 1000

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				mailbox.Send([2]int{s, i})
			}
		}(s)
	}

	go func() {
		wg.Wait()
		mailbox.Close()
	}()

	// Per-sender order must be preserved even when senders interleave.
	last := make([]int, senders)
	for i := range last {
		last[i] = -1
	}
	received := 0
	buf := make([]interface{}, 64)
	for {
		n, err := mailbox.ReceiveBatch(context.Background(), buf)
		if err == ErrMailboxClosed {
			break
		}
		if err != nil {
			t.Fatalf("ReceiveBatch() error = %v", err)
		}
		for _, m := range buf[:n] {
			p := m.([2]int)
			if p[1] != last[p[0]]+1 {
				t.Fatalf("sender %d: got seq %d after %d", p[0], p[1], last[p[0]])
			}
			last[p[0]] = p[1]
			received++
		}
	}
	if received != senders*perSender {
		t.Errorf("received %d messages, want %d", received, senders*perSender)
	}
}
