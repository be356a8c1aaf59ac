package bootstrap

import (
	"errors"
	"io"
	"testing"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
)

type recordingCloser struct {
	name  string
	order *[]string
	err   error
}

func (r recordingCloser) Close() error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func testRuntime() *Runtime {
	return &Runtime{
		Service: "test",
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func TestCloseReleasesNewestFirst(t *testing.T) {
	rt := testRuntime()
	var order []string
	rt.track("database", recordingCloser{name: "database", order: &order})
	rt.track("redis", recordingCloser{name: "redis", order: &order, err: errors.New("already closed")})
	rt.track("pubsub", recordingCloser{name: "pubsub", order: &order})

	rt.Close()
	rt.Close()

	want := []string{"pubsub", "redis", "database"}
	if len(order) != len(want) {
		t.Fatalf("expected each closer once, got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestFatalClosesThenExits(t *testing.T) {
	rt := testRuntime()
	var order []string
	var code int
	rt.exit = func(c int) { code = c }
	rt.track("database", recordingCloser{name: "database", order: &order})

	rt.Must("fine", nil)
	if code != 0 || len(order) != 0 {
		t.Fatal("Must acted on a nil error")
	}
	rt.Must("connect", errors.New("refused"))
	if code != 1 || len(order) != 1 {
		t.Fatalf("expected exit 1 after closing, code=%d closed=%v", code, order)
	}
}

func TestInstanceIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "cron-2")
	t.Setenv("HOSTNAME", "pod-abc")
	if got := InstanceID(); got != "cron-2" {
		t.Fatalf("expected WORKER_ID, got %s", got)
	}
	t.Setenv("WORKER_ID", "")
	t.Setenv("DYNO", "")
	if got := InstanceID(); got != "pod-abc" {
		t.Fatalf("expected HOSTNAME fallback, got %s", got)
	}
}
