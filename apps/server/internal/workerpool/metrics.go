package workerpool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrName = "github.com/tilsley/repolens"

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeTimeout   = "timeout"
	outcomeAbandoned = "abandoned"
	outcomeStopped   = "stopped"
)

type poolMetrics struct {
	submittedTotal metric.Int64Counter
	completedTotal metric.Int64Counter
	duration       metric.Float64Histogram
	wait           metric.Float64Histogram
}

// newPoolMetrics registers the pool instruments on the global meter provider.
// Instrument errors are ignored; the global provider falls back to no-ops.
func newPoolMetrics(pending func() int) *poolMetrics {
	m := otel.Meter(instrName)

	submitted, _ := m.Int64Counter("repolens.pool.tasks.submitted",
		metric.WithDescription("Number of tasks submitted to the worker pool"))
	completed, _ := m.Int64Counter("repolens.pool.tasks.completed",
		metric.WithDescription("Number of task outcomes delivered, by outcome"))
	duration, _ := m.Float64Histogram("repolens.pool.task.duration",
		metric.WithDescription("Task execution time in milliseconds"),
		metric.WithUnit("ms"))
	wait, _ := m.Float64Histogram("repolens.pool.task.wait",
		metric.WithDescription("Time a task spent pending before a worker took it"),
		metric.WithUnit("ms"))
	_, _ = m.Int64ObservableGauge("repolens.pool.pending",
		metric.WithDescription("Tasks waiting for a worker"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(pending()))
			return nil
		}))

	return &poolMetrics{
		submittedTotal: submitted,
		completedTotal: completed,
		duration:       duration,
		wait:           wait,
	}
}

func (m *poolMetrics) submitted(ctx context.Context) {
	m.submittedTotal.Add(ctx, 1)
}

func (m *poolMetrics) completed(ctx context.Context, outcome string) {
	m.completedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *poolMetrics) ran(ctx context.Context, d time.Duration, outcome string) {
	m.duration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *poolMetrics) waited(ctx context.Context, d time.Duration) {
	m.wait.Record(ctx, float64(d.Milliseconds()))
}
