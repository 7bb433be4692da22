package otel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestInitialize_Stdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.ServiceVersion = "test"
	cfg.Writer = &buf

	if err := Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !IsInitialized() {
		t.Error("IsInitialized() = false after Initialize")
	}

	_, span := Tracer("otel-test").Start(context.Background(), "stdout-span")
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if IsInitialized() {
		t.Error("IsInitialized() = true after Shutdown")
	}
	if !strings.Contains(buf.String(), "stdout-span") {
		t.Errorf("exporter output = %q, want span name", buf.String())
	}
	if !strings.Contains(buf.String(), "keyseq") {
		t.Errorf("exporter output = %q, want service name", buf.String())
	}
}

func TestInitialize_Zipkin(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := Initialize(context.Background(), Config{
		ServiceName: "keyseq-zipkin",
		Exporter:    "zipkin",
		Endpoint:    srv.URL,
		SampleRate:  1,
	})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	_, span := Tracer("otel-test").Start(context.Background(), "zipkin-span")
	span.End()
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) == 0 {
		t.Fatal("collector received nothing")
	}
	if !strings.Contains(strings.Join(bodies, ""), "zipkin-span") {
		t.Errorf("collector bodies = %v, want span name", bodies)
	}
}

func TestInitialize_None(t *testing.T) {
	if err := Initialize(context.Background(), Config{ServiceName: "quiet", Exporter: "none"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	_, span := Tracer("otel-test").Start(context.Background(), "dropped")
	span.End()
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestInitialize_UnknownExporter(t *testing.T) {
	err := Initialize(context.Background(), Config{Exporter: "carrier-pigeon"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("Initialize() error = %v, want %v", err, ErrUnknownExporter)
	}
}

func TestShutdown_NotInitialized(t *testing.T) {
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestSampler(t *testing.T) {
	for _, rate := range []float64{-1, 0, 0.5, 1, 2} {
		if sampler(rate) == nil {
			t.Errorf("sampler(%v) = nil", rate)
		}
	}
	if d := sampler(0.5).Description(); !strings.Contains(d, "TraceIDRatioBased") {
		t.Errorf("sampler(0.5) = %q, want ratio sampler", d)
	}
}
