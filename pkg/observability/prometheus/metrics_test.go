package prometheus_test

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/core/concurrency"
	"github.com/fluxorio/keyseq/pkg/keyseq"
	"github.com/fluxorio/keyseq/pkg/observability/prometheus"
)

func TestMetrics_Recorder(t *testing.T) {
	m := prometheus.NewMetrics(prom.NewRegistry())

	m.JobRouted("ks", 1)
	m.JobRouted("ks", 1)
	m.JobCompleted("ks", 1, 2*time.Millisecond)
	m.JobPanicked("ks", 1)
	m.JobRejected("ks")

	if got := testutil.ToFloat64(m.JobsRouted.WithLabelValues("ks", "1")); got != 2 {
		t.Errorf("routed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.JobsCompleted.WithLabelValues("ks", "1")); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobsPending.WithLabelValues("ks", "1")); got != 1 {
		t.Errorf("pending = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobsPanicked.WithLabelValues("ks", "1")); got != 1 {
		t.Errorf("panicked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobsRejected.WithLabelValues("ks")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}

func TestMetrics_WithExecutor(t *testing.T) {
	reg := prom.NewRegistry()
	m := prometheus.NewMetrics(reg)

	x, err := keyseq.NewWithConfig(keyseq.Config{
		Name:    "metered",
		Workers: 3,
		Logger:  core.NopLogger(),
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}
	for i := 0; i < 30; i++ {
		_ = x.Submit(strconv.Itoa(i), func() {})
	}
	x.Stop()

	var routed, completed, pending float64
	for w := 0; w < 3; w++ {
		label := strconv.Itoa(w)
		routed += testutil.ToFloat64(m.JobsRouted.WithLabelValues("metered", label))
		completed += testutil.ToFloat64(m.JobsCompleted.WithLabelValues("metered", label))
		pending += testutil.ToFloat64(m.JobsPending.WithLabelValues("metered", label))
	}
	if routed != 30 || completed != 30 || pending != 0 {
		t.Errorf("routed = %v, completed = %v, pending = %v; want 30, 30, 0", routed, completed, pending)
	}
	if n := testutil.CollectAndCount(m.JobDuration); n == 0 {
		t.Error("no job duration series collected")
	}
}

func TestMetrics_UpdatePool(t *testing.T) {
	m := prometheus.NewMetrics(prom.NewRegistry())
	m.UpdatePool("baseline", concurrency.ExecutorStats{
		QueuedTasks:    4,
		CompletedTasks: 10,
		FailedTasks:    1,
		RejectedTasks:  2,
	})

	if got := testutil.ToFloat64(m.PoolCompletedTasks.WithLabelValues("baseline")); got != 10 {
		t.Errorf("completed = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.PoolRejectedTasks.WithLabelValues("baseline")); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prom.NewRegistry()
	m := prometheus.NewMetrics(reg)
	m.JobRouted("served", 0)
	m.RecordHTTPRequest("GET", "/stats", prometheus.StatusClass(200), time.Millisecond)

	ln := fasthttputil.NewInmemoryListener()
	defer ln.Close()
	go func() {
		_ = fasthttp.Serve(ln, prometheus.Handler(reg))
	}()

	client := &http.Client{
		Transport: &http.Transport{
			Dial: func(network, addr string) (net.Conn, error) {
				return ln.Dial()
			},
		},
	}
	resp, err := client.Get("http://test/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{
		`keyseq_jobs_routed_total{executor="served",worker="0"} 1`,
		`keyseq_http_requests_total{method="GET",path="/stats",status="2xx"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 0: "unknown"}
	for code, want := range tests {
		if got := prometheus.StatusClass(code); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestGetMetrics(t *testing.T) {
	if prometheus.GetMetrics() != prometheus.GetMetrics() {
		t.Error("GetMetrics() should return the same instance")
	}
}
