package sales

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handler reacts to a published domain event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler. Function values are not
// comparable, so a HandlerFunc can be registered but never unregistered.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Publisher delivers domain events to interested handlers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher keeps, per event kind, the ordered list of handlers and delivers
// events to them sequentially. It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	isolate  bool
	logger   *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHandlerIsolation keeps delivering to the remaining handlers when one fails.
// Publish then returns every handler error combined.
func WithHandlerIsolation() DispatcherOption {
	return func(d *Dispatcher) { d.isolate = true }
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		handlers: map[Kind][]Handler{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register appends handler to the subscribers of kind. Registering the same
// handler twice makes it fire twice.
func (d *Dispatcher) Register(kind Kind, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], handler)
}

// Unregister removes the first registration of handler for kind. It is a no-op
// when the handler is not registered.
func (d *Dispatcher) Unregister(kind Kind, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.handlers[kind]
	for i, h := range list {
		if sameHandler(h, handler) {
			next := make([]Handler, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			d.handlers[kind] = next
			return
		}
	}
}

// Publish invokes every handler registered for the event kind in registration
// order, waiting for each one before calling the next. Delivery stops before the
// next handler once ctx is done.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers[event.Kind()]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.Debug("no handlers registered", zap.String("event", string(event.Kind())))
		return nil
	}

	d.logger.Info("event dispatched",
		zap.String("event", string(event.Kind())),
		zap.String("sale_id", event.AggregateID()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.Int("handlers", len(handlers)),
	)

	var errs error
	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := h.Handle(ctx, event); err != nil {
			err = fmt.Errorf("handle %s: %w", event.Kind(), err)
			if !d.isolate {
				return err
			}
			d.logger.Warn("event handler failed", zap.String("event", string(event.Kind())), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// sameHandler reports whether a and b are the same registration. Values whose
// dynamic type cannot be compared, including structs holding a slice or map
// behind an interface field, never match.
func sameHandler(a, b Handler) (same bool) {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
