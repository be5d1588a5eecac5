package health

import (
	"context"
	"time"
)

// Status is the health of a component as reported by a check
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Statuses lists every status value
func Statuses() []string {
	return []string{
		string(StatusHealthy),
		string(StatusDegraded),
		string(StatusUnhealthy),
		string(StatusUnknown),
	}
}

// IsServing reports whether the status allows traffic. Degraded components
// still serve.
func (s Status) IsServing() bool {
	return s == StatusHealthy || s == StatusDegraded
}

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeDNS  CheckType = "dns"
)

// Result represents the outcome of a health check
type Result struct {
	Status    Status
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Healthy reports whether the result is serving
func (r Result) Healthy() bool {
	return r.Status.IsServing()
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Worst returns the most severe status. Unknown ranks between degraded and
// unhealthy.
func Worst(statuses ...Status) Status {
	rank := map[Status]int{
		StatusHealthy:   0,
		StatusDegraded:  1,
		StatusUnknown:   2,
		StatusUnhealthy: 3,
	}
	worst := StatusHealthy
	for _, s := range statuses {
		if rank[s] > rank[worst] {
			worst = s
		}
	}
	return worst
}

func result(status Status, message string, start time.Time) Result {
	return Result{
		Status:    status,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
