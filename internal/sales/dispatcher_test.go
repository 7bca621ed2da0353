package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

// recorder is a comparable handler that appends its name to a shared trace.
type recorder struct {
	name  string
	trace *trace
	err   error
}

type trace struct {
	mu     sync.Mutex
	calls  []string
	events []Event
}

func (t *trace) add(name string, e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, name)
	t.events = append(t.events, e)
}

func (t *trace) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *trace) kinds() []Kind {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Kind, 0, len(t.events))
	for _, e := range t.events {
		out = append(out, e.Kind())
	}
	return out
}

func (r *recorder) Handle(_ context.Context, e Event) error {
	r.trace.add(r.name, e)
	return r.err
}

func created() Event { return SaleCreated{SaleID: "s1", OccurredOn: time.Now().UTC()} }

func TestDispatcher_PublishInRegistrationOrder(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	tr := &trace{}
	d.Register(KindSaleCreated, &recorder{name: "a", trace: tr})
	d.Register(KindSaleCreated, &recorder{name: "b", trace: tr})
	d.Register(KindSaleModified, &recorder{name: "other", trace: tr})

	require.NoError(t, d.Publish(context.Background(), created()))

	assert.Equal(t, []string{"a", "b"}, tr.names())
}

func TestDispatcher_SameHandlerTwiceFiresTwice(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	tr := &trace{}
	h := &recorder{name: "h", trace: tr}
	d.Register(KindSaleCreated, h)
	d.Register(KindSaleCreated, h)

	require.NoError(t, d.Publish(context.Background(), created()))

	assert.Equal(t, []string{"h", "h"}, tr.names())
}

func TestDispatcher_UnregisterRemovesFirstMatch(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	tr := &trace{}
	h := &recorder{name: "h", trace: tr}
	other := &recorder{name: "other", trace: tr}
	d.Register(KindSaleCreated, h)
	d.Register(KindSaleCreated, other)
	d.Register(KindSaleCreated, h)

	d.Unregister(KindSaleCreated, h)
	require.NoError(t, d.Publish(context.Background(), created()))

	assert.Equal(t, []string{"other", "h"}, tr.names())
}

func TestDispatcher_UnregisterAbsentIsNoop(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	tr := &trace{}
	d.Register(KindSaleCreated, &recorder{name: "a", trace: tr})

	d.Unregister(KindSaleCreated, &recorder{name: "absent", trace: tr})
	d.Unregister(KindItemCancelled, &recorder{name: "absent", trace: tr})
	fn := HandlerFunc(func(context.Context, Event) error { return nil })
	assert.NotPanics(t, func() { d.Unregister(KindSaleCreated, fn) })

	require.NoError(t, d.Publish(context.Background(), created()))
	assert.Equal(t, []string{"a"}, tr.names())
}

func TestDispatcher_NoHandlersIsNoop(t *testing.T) {
	d := NewDispatcher(nil)
	assert.NoError(t, d.Publish(context.Background(), created()))
}

func TestDispatcher_HandlerFailureAbortsDelivery(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	tr := &trace{}
	boom := errors.New("boom")
	d.Register(KindSaleCreated, &recorder{name: "a", trace: tr, err: boom})
	d.Register(KindSaleCreated, &recorder{name: "b", trace: tr})

	err := d.Publish(context.Background(), created())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, tr.names())
}

func TestDispatcher_IsolationKeepsDelivering(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t), WithHandlerIsolation())
	tr := &trace{}
	first, second := errors.New("first"), errors.New("second")
	d.Register(KindSaleCreated, &recorder{name: "a", trace: tr, err: first})
	d.Register(KindSaleCreated, &recorder{name: "b", trace: tr})
	d.Register(KindSaleCreated, &recorder{name: "c", trace: tr, err: second})

	err := d.Publish(context.Background(), created())

	assert.Equal(t, []string{"a", "b", "c"}, tr.names())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestDispatcher_CancellationStopsBeforeNextHandler(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls []string
	d.Register(KindSaleCreated, HandlerFunc(func(context.Context, Event) error {
		calls = append(calls, "first")
		cancel()
		return nil
	}))
	d.Register(KindSaleCreated, HandlerFunc(func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	}))

	err := d.Publish(ctx, created())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, calls)
}

func TestDispatcher_UnregisterDuringPublishUsesSnapshot(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	tr := &trace{}
	late := &recorder{name: "late", trace: tr}
	d.Register(KindSaleCreated, HandlerFunc(func(context.Context, Event) error {
		d.Unregister(KindSaleCreated, late)
		return nil
	}))
	d.Register(KindSaleCreated, late)

	require.NoError(t, d.Publish(context.Background(), created()))
	assert.Equal(t, []string{"late"}, tr.names())

	require.NoError(t, d.Publish(context.Background(), created()))
	assert.Equal(t, []string{"late"}, tr.names(), "second publish must not reach the unregistered handler")
}

func TestDispatcher_ConcurrentUse(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	tr := &trace{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h := &recorder{name: "h", trace: tr}
			d.Register(KindSaleCreated, h)
			d.Unregister(KindSaleCreated, h)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Publish(context.Background(), created()))
		}()
	}
	wg.Wait()

	d.mu.RLock()
	defer d.mu.RUnlock()
	assert.Empty(t, d.handlers[KindSaleCreated])
}

// tagged is comparable by type but holds a slice behind an interface field.
type tagged struct {
	tags interface{}
	seen *int
}

func (h tagged) Handle(context.Context, Event) error {
	*h.seen++
	return nil
}

func TestDispatcher_UnregisterUncomparableValueIsNoop(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	seen := 0
	d.Register(KindSaleCreated, tagged{tags: []string{"a"}, seen: &seen})

	assert.NotPanics(t, func() {
		d.Unregister(KindSaleCreated, tagged{tags: []string{"a"}, seen: &seen})
	})

	require.NoError(t, d.Publish(context.Background(), created()))
	assert.Equal(t, 1, seen)
}
