package keyseq

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
)

func TestRoute_Deterministic(t *testing.T) {
	keys := []string{"", "a", "b", "order-42", "6f1c1f4e-8a0b-4b8e-9d3c-2b8d1c3e4f5a"}
	for _, n := range []int{1, 2, 3, 10, 64} {
		for _, k := range keys {
			first := Route(k, n)
			if first < 0 || first >= n {
				t.Fatalf("Route(%q, %d) = %d, out of range", k, n, first)
			}
			for i := 0; i < 5; i++ {
				if got := Route(k, n); got != first {
					t.Errorf("Route(%q, %d) = %d, then %d", k, n, first, got)
				}
			}
		}
	}
}

func TestRoute_SingleWorker(t *testing.T) {
	for i := 0; i < 100; i++ {
		if got := Route(strconv.Itoa(i), 1); got != 0 {
			t.Fatalf("Route(%d, 1) = %d, want 0", i, got)
		}
	}
}

func TestRoute_Distribution(t *testing.T) {
	tests := []struct {
		name string
		key  func(i int) string
	}{
		{"sequential", strconv.Itoa},
		{"uuid", func(int) string { return uuid.NewString() }},
	}

	const workers, keys = 8, 16000
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := make([]int, workers)
			for i := 0; i < keys; i++ {
				counts[Route(tt.key(i), workers)]++
			}
			want := keys / workers
			for w, c := range counts {
				if c < want*3/4 || c > want*5/4 {
					t.Errorf("worker %d got %d keys, want about %d", w, c, want)
				}
			}
		})
	}
}

func TestRoute_ZeroWorkersPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Route(k, 0) should panic")
		}
	}()
	Route("k", 0)
}

func TestRouterFunc(t *testing.T) {
	var r Router = RouterFunc(func(key string, workers int) int { return len(key) % workers })
	if got := r.Route("abc", 2); got != 1 {
		t.Errorf("Route() = %d, want 1", got)
	}
	if got := (HashRouter{}).Route("abc", 7); got != Route("abc", 7) {
		t.Errorf("HashRouter.Route() = %d, want %d", got, Route("abc", 7))
	}
}
