package quiz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/classpulse/classpulse/pkg/http/ws"
)

// Metrics instruments the orchestration engine. Gauges are computed from
// the live registry and hub rather than maintained by hand.
type Metrics struct {
	SessionsCreated prometheus.Counter
	MessagesRouted  *prometheus.CounterVec
	StudentsJoined  prometheus.Counter
}

// NewMetrics registers collectors with reg. Pass prometheus.DefaultRegisterer
// in production; tests use a private registry to avoid collisions.
func NewMetrics(reg prometheus.Registerer, registry *Registry, hub *ws.Hub) *Metrics {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quiz_active_sessions",
		Help: "Number of live sessions in the registry.",
	}, func() float64 { return float64(registry.Len()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quiz_open_connections",
		Help: "Number of open WebSocket connections.",
	}, func() float64 { return float64(hub.Len()) })

	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_created_total",
			Help: "Sessions created since process start.",
		}),
		MessagesRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_messages_routed_total",
			Help: "Inbound WebSocket commands routed, by message type.",
		}, []string{"type"}),
		StudentsJoined: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_students_joined_total",
			Help: "Students joined across all sessions since process start.",
		}),
	}
}
