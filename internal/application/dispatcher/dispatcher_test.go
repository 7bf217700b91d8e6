package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/garyjia/school-fees/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func TestSubscribe(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.Subscribe(event.TypeVoucherIssued, func(ctx context.Context, evt *event.Event) error { return nil })
	d.Subscribe(event.TypeVoucherIssued, func(ctx context.Context, evt *event.Event) error { return nil })

	handlers := d.ListHandlers(event.TypeVoucherIssued)
	if len(handlers) != 2 {
		t.Fatalf("expected 2 handlers, got %d", len(handlers))
	}
	if handlers[0].Name == handlers[1].Name {
		t.Errorf("generated names collide: %s", handlers[0].Name)
	}
	if !logger.HasInfo("Handler registered") {
		t.Error("expected registration to be logged")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		for _, name := range []string{"first", "second", "third"} {
			name := name
			d.SubscribeNamed(event.TypePaymentVerified, name, func(ctx context.Context, evt *event.Event) error {
				order = append(order, name)
				return nil
			})
		}

		if err := d.Dispatch(context.Background(), event.NewEvent(event.TypePaymentVerified, "v-1", "a-1", nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fmt.Sprint(order) != "[first second third]" {
			t.Errorf("unexpected order: %v", order)
		}
	})

	t.Run("only matching event type", func(t *testing.T) {
		d := NewDispatcher()
		var called atomic.Int32
		d.Subscribe(event.TypeVoucherDeleted, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeVoucherIssued, "v-1", "a-1", nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if called.Load() != 0 {
			t.Errorf("handler for another type was called")
		}
	})

	t.Run("failure does not stop later handlers", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		boom := errors.New("boom")
		var laterCalled bool

		d.SubscribeNamed(event.TypePaymentRejected, "failing", func(ctx context.Context, evt *event.Event) error {
			return boom
		})
		d.SubscribeNamed(event.TypePaymentRejected, "later", func(ctx context.Context, evt *event.Event) error {
			laterCalled = true
			return nil
		})

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypePaymentRejected, "v-1", "a-1", nil))
		if !errors.Is(err, boom) {
			t.Fatalf("expected joined error to wrap boom, got %v", err)
		}
		if !laterCalled {
			t.Error("later handler was skipped")
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("expected 1 error log, got %d", logger.ErrorCount())
		}
	})

	t.Run("recovers handler panic", func(t *testing.T) {
		d := NewDispatcher(WithLogger(&mockLogger{}))
		d.SubscribeNamed(event.TypeProofSubmitted, "panicky", func(ctx context.Context, evt *event.Event) error {
			panic("nil map")
		})

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeProofSubmitted, "v-1", "s-1", nil))
		if err == nil {
			t.Fatal("expected error from panicking handler")
		}
	})
}

func TestListHandlers_HidesFunctions(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeVoucherIssued, "history", func(ctx context.Context, evt *event.Event) error { return nil })

	handlers := d.ListHandlers(event.TypeVoucherIssued)
	if len(handlers) != 1 || handlers[0].Name != "history" {
		t.Fatalf("unexpected handlers: %+v", handlers)
	}
	if handlers[0].Handler != nil {
		t.Error("handler function should not be exposed")
	}
	if got := d.ListHandlers(event.TypeVoucherDeleted); len(got) != 0 {
		t.Errorf("expected no handlers, got %d", len(got))
	}
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	if err := d.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second close should fail")
	}

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeVoucherIssued, "v-1", "a-1", nil))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestConcurrency(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int64
	d.Subscribe(event.TypeVoucherIssued, func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeVoucherIssued, "v", "a", nil))
		}()
		go func(i int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeVoucherDeleted, fmt.Sprintf("h-%d", i), func(ctx context.Context, evt *event.Event) error { return nil })
		}(i)
	}
	wg.Wait()

	if count.Load() != 50 {
		t.Errorf("expected 50 deliveries, got %d", count.Load())
	}
	if n := len(d.ListHandlers(event.TypeVoucherDeleted)); n != 50 {
		t.Errorf("expected 50 handlers, got %d", n)
	}
}

func TestSubscribeAll(t *testing.T) {
	d := NewDispatcher()
	var seen []event.Type
	d.SubscribeAll("history", func(ctx context.Context, evt *event.Event) error {
		seen = append(seen, evt.Type)
		return nil
	}, event.TypeVoucherIssued, event.TypeVoucherDeleted)

	for _, typ := range []event.Type{event.TypeVoucherIssued, event.TypeVoucherDeleted, event.TypePaymentVerified} {
		if err := d.Dispatch(context.Background(), event.NewEvent(typ, "v-1", "a-1", nil)); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", typ, err)
		}
	}

	if len(seen) != 2 || seen[0] != event.TypeVoucherIssued || seen[1] != event.TypeVoucherDeleted {
		t.Errorf("unexpected deliveries: %v", seen)
	}
	if got := d.ListHandlers(event.TypeVoucherDeleted); len(got) != 1 || got[0].Name != "history" {
		t.Errorf("unexpected handlers: %+v", got)
	}
}

func TestDispatch_RejectsUnknownEvents(t *testing.T) {
	d := NewDispatcher()
	if err := d.Dispatch(context.Background(), nil); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("nil event: expected ErrUnknownEvent, got %v", err)
	}
	evt := event.NewEvent(event.Type("voucher.archived"), "v-1", "a-1", nil)
	if err := d.Dispatch(context.Background(), evt); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown type: expected ErrUnknownEvent, got %v", err)
	}
}
