package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"sales_service/internal/sales"
)

// MetricsHandler counts received events per kind.
type MetricsHandler struct {
	events *prometheus.CounterVec
}

// NewMetricsHandler creates a MetricsHandler and registers its collector on reg.
func NewMetricsHandler(reg prometheus.Registerer) (*MetricsHandler, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_domain_events_total",
		Help: "Sale domain events delivered in process, by kind.",
	}, []string{"kind"})
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &MetricsHandler{events: events}, nil
}

func (h *MetricsHandler) Handle(_ context.Context, event sales.Event) error {
	h.events.WithLabelValues(string(event.Kind())).Inc()
	return nil
}

// Subscribe registers handler for every sale event kind.
func Subscribe(d *sales.Dispatcher, handler sales.Handler) {
	for _, kind := range sales.Kinds {
		d.Register(kind, handler)
	}
}
