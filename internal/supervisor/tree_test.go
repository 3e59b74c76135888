package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cesargomez89/playledger/internal/logger"
)

type countingService struct {
	name   string
	starts atomic.Int32
	failN  int32
}

func (s *countingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failN {
		return errors.New("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func TestNewTree_AppliesDefaults(t *testing.T) {
	tree := NewTree(logger.Discard(), TreeConfig{})
	if tree.config != DefaultTreeConfig() {
		t.Errorf("Expected default config, got %+v", tree.config)
	}
	if tree.Pollers() == nil {
		t.Error("Expected pollers supervisor")
	}
}

func TestTree_RestartsFailingService(t *testing.T) {
	tree := NewTree(logger.Discard(), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	flaky := &countingService{name: "flaky", failN: 2}
	steady := &countingService{name: "steady"}
	tree.AddBackground(flaky)
	tree.AddAPI(steady)
	tree.Pollers().Add(&countingService{name: "poller"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for flaky.starts.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := flaky.starts.Load(); got < 3 {
		t.Errorf("Expected flaky service restarted, started %d times", got)
	}
	if got := steady.starts.Load(); got != 1 {
		t.Errorf("Expected steady service started once, got %d", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("Tree did not stop")
	}
	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport failed: %v", err)
	}
	if len(report) != 0 {
		t.Errorf("Expected every service stopped, got %v", report)
	}
}
