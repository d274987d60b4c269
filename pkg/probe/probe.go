package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const defaultTimeout = 5 * time.Second

// CheckFunc is a function that performs a health check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool          // If true, a failure here should prevent application startup.
	Timeout  time.Duration // Zero uses the default of 5s.
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Status is the JSON view of a Result.
type Status struct {
	Name       string `json:"name"`
	Critical   bool   `json:"critical"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Status converts the result for reporting.
func (r Result) Status() Status {
	s := Status{
		Name:       r.Probe.Name,
		Critical:   r.Probe.Critical,
		Passed:     r.Error == nil,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Error != nil {
		s.Error = r.Error.Error()
	}
	return s
}

// Run executes a list of probes in order and returns their results.
// Each check gets its own deadline even when ctx has none.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		start := time.Now()

		timeout := p.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Error:    err,
			Duration: time.Since(start),
		}
	}

	return results
}

// AnalyzeResults logs every result and returns the joined errors of the
// critical probes that failed.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Preflight Checks Summary")

	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		switch {
		case r.Error == nil:
			slog.Info(msg)
		case r.Probe.Critical:
			slog.Error(msg, "error", r.Error)
			criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		default:
			slog.Warn(msg, "error", r.Error)
		}
	}

	if len(criticalErrors) > 0 {
		return errors.Join(criticalErrors...)
	}

	return nil
}
