package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/statuspage"
)

// Outcome classifies the result of one service query.
type Outcome string

// Sweep outcomes.
const (
	OutcomeOK           Outcome = "ok"
	OutcomeRequestError Outcome = "request_error"
	OutcomeFormatError  Outcome = "format_error"
	OutcomeError        Outcome = "error"
)

// StatusChecker is the subset of statuspage.Checker a sweep needs.
type StatusChecker interface {
	Registry() *statuspage.Registry
	StatusOf(ctx context.Context, svc statuspage.Service) (*statuspage.Snapshot, error)
}

// SweepJob queries every configured service concurrently.
type SweepJob struct {
	config  SweepConfig
	status  StatusChecker
	logger  zerolog.Logger
	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	TotalSweeps     int64
	ServicesQueried int64
	Successful      int64
	RequestErrors   int64
	FormatErrors    int64

	LastSweepAt       time.Time
	LastSweepDuration time.Duration
	TotalDuration     time.Duration
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config SweepConfig
	Status StatusChecker
	Logger zerolog.Logger
}

// NewSweepJob creates a new sweep job.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:  cfg.Config.withDefaults(),
		status:  cfg.Status,
		logger:  cfg.Logger,
		metrics: &SweepMetrics{},
	}
}

// ServiceResult is the outcome of querying one service.
type ServiceResult struct {
	Service    string               `json:"service"`
	URL        string               `json:"url"`
	Outcome    Outcome              `json:"outcome"`
	Components int                  `json:"components"`
	Message    string               `json:"message,omitempty"`
	Duration   time.Duration        `json:"-"`
	Snapshot   *statuspage.Snapshot `json:"-"`
}

// SweepResult gathers every service result of one sweep, in the order the
// services were configured.
type SweepResult struct {
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	Duration      time.Duration   `json:"-"`
	Total         int             `json:"total"`
	Successful    int             `json:"successful"`
	RequestErrors int             `json:"requestErrors"`
	FormatErrors  int             `json:"formatErrors"`
	Results       []ServiceResult `json:"results"`
}

// Failed returns the number of services that did not produce a snapshot.
func (r *SweepResult) Failed() int {
	return r.Total - r.Successful
}

// Run sweeps every configured service.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	services := j.config.Services
	if len(services) == 0 {
		services = j.status.Registry().All()
	}
	return j.RunServices(ctx, services)
}

// RunServices sweeps the given services. Results keep the order of services
// regardless of completion order.
func (j *SweepJob) RunServices(ctx context.Context, services []statuspage.Service) *SweepResult {
	startTime := time.Now()
	result := &SweepResult{
		StartTime: startTime,
		Total:     len(services),
		Results:   make([]ServiceResult, len(services)),
	}

	j.logger.Info().
		Int("services", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting status sweep")

	type task struct {
		index   int
		service statuspage.Service
	}

	tasks := make(chan task, len(services))
	for i, svc := range services {
		tasks <- task{index: i, service: svc}
	}
	close(tasks)

	workers := j.config.Concurrency
	if workers > len(services) {
		workers = len(services)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				// Each worker owns distinct indexes, so no lock is needed.
				result.Results[t.index] = j.query(ctx, t.service)
			}
		}()
	}
	wg.Wait()

	for _, r := range result.Results {
		switch r.Outcome {
		case OutcomeOK:
			result.Successful++
		case OutcomeRequestError:
			result.RequestErrors++
		case OutcomeFormatError:
			result.FormatErrors++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("request_errors", result.RequestErrors).
		Int("format_errors", result.FormatErrors).
		Msg("status sweep completed")

	return result
}

func (j *SweepJob) query(ctx context.Context, svc statuspage.Service) ServiceResult {
	result := ServiceResult{
		Service: svc.Name,
		URL:     svc.StatusURL(),
	}

	queryCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	snapshot, err := j.status.StatusOf(queryCtx, svc)
	result.Duration = time.Since(start)

	if err != nil {
		result.Outcome = classify(err)
		result.Message = statuspage.UserMessage(err)
		return result
	}

	result.Outcome = OutcomeOK
	result.Components = len(snapshot.Components)
	result.Snapshot = snapshot
	return result
}

func classify(err error) Outcome {
	var transportErr *statuspage.TransportError
	var formatErr *statuspage.FormatError

	switch {
	case errors.As(err, &transportErr):
		return OutcomeRequestError
	case errors.As(err, &formatErr):
		return OutcomeFormatError
	default:
		return OutcomeError
	}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalSweeps++
	j.metrics.ServicesQueried += int64(result.Total)
	j.metrics.Successful += int64(result.Successful)
	j.metrics.RequestErrors += int64(result.RequestErrors)
	j.metrics.FormatErrors += int64(result.FormatErrors)
	j.metrics.LastSweepAt = result.EndTime
	j.metrics.LastSweepDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalSweeps:       j.metrics.TotalSweeps,
		ServicesQueried:   j.metrics.ServicesQueried,
		Successful:        j.metrics.Successful,
		RequestErrors:     j.metrics.RequestErrors,
		FormatErrors:      j.metrics.FormatErrors,
		LastSweepAt:       j.metrics.LastSweepAt,
		LastSweepDuration: j.metrics.LastSweepDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_sweeps":        m.TotalSweeps,
		"services_queried":    m.ServicesQueried,
		"successful":          m.Successful,
		"request_errors":      m.RequestErrors,
		"format_errors":       m.FormatErrors,
		"last_sweep_at":       m.LastSweepAt,
		"last_sweep_duration": m.LastSweepDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
