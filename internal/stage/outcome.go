// Package stage carries the result of one pipeline stage together with how
// it was produced.
package stage

import (
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/pkg/logger"
)

type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Outcome is Success(data), Degraded(data, reason) or Failed(reason).
type Outcome[T any] struct {
	Data   T
	Status Status
	Reason string
}

func Success[T any](data T) Outcome[T] {
	return Outcome[T]{Data: data, Status: StatusSuccess}
}

func Degraded[T any](data T, reason string) Outcome[T] {
	return Outcome[T]{Data: data, Status: StatusDegraded, Reason: reason}
}

func Failed[T any](reason string) Outcome[T] {
	return Outcome[T]{Status: StatusFailed, Reason: reason}
}

func (o Outcome[T]) OK() bool {
	return o.Status != StatusFailed
}

// Report is the data-free summary of an outcome.
type Report struct {
	Stage    string `json:"stage"`
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Count    int    `json:"count"`
	Duration string `json:"duration"`
}

// Record logs and counts the outcome of a named stage and returns its report.
func Record[T any](name string, o Outcome[T], count int, started time.Time) Report {
	elapsed := time.Since(started)
	metrics.StageOutcomes.WithLabelValues(name, string(o.Status)).Inc()
	metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("stage", name),
		zap.String("status", string(o.Status)),
		zap.Int("count", count),
		zap.Duration("duration", elapsed),
	}
	switch o.Status {
	case StatusSuccess:
		logger.Info("Stage completed", fields...)
	case StatusDegraded:
		logger.Warn("Stage degraded", append(fields, zap.String("reason", o.Reason))...)
	default:
		logger.Error("Stage failed", append(fields, zap.String("reason", o.Reason))...)
	}

	return Report{
		Stage:    name,
		Status:   o.Status,
		Reason:   o.Reason,
		Count:    count,
		Duration: elapsed.Round(time.Millisecond).String(),
	}
}
