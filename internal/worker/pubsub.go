package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/statuspage"
)

// Job types accepted on the subscription.
const (
	JobTypeStatusSweep = "status_sweep"
	JobTypeHealthCheck = "health_check"
)

// Job errors.
var (
	ErrUnknownJobType = errors.New("unknown job type")
	ErrInvalidMessage = errors.New("invalid message")
)

// SweepMessage represents a sweep job message.
type SweepMessage struct {
	JobType string `json:"job_type"`

	// Services limits a status sweep to the named services (optional).
	Services []string `json:"services,omitempty"`
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *JobProcessor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *JobProcessor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 5 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case err == nil:
		msg.Ack()
	case errors.Is(err, ErrUnknownJobType), errors.Is(err, ErrInvalidMessage):
		// Redelivery cannot fix a bad message.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}

// JobProcessor decodes and runs sweep jobs. It is independent of the
// transport so it can be driven by tests or other queues.
type JobProcessor struct {
	sweep          *SweepJob
	registry       *statuspage.Registry
	defaultService string
	logger         zerolog.Logger
}

// JobProcessorConfig holds configuration for the job processor.
type JobProcessorConfig struct {
	Sweep *SweepJob

	// Registry resolves service names in messages.
	// Default: the sweep checker's registry
	Registry *statuspage.Registry

	// DefaultService is probed by health checks.
	// Default: statuspage.DefaultServiceName
	DefaultService string

	Logger zerolog.Logger
}

// NewJobProcessor creates a new job processor.
func NewJobProcessor(cfg JobProcessorConfig) *JobProcessor {
	defaultService := cfg.DefaultService
	if defaultService == "" {
		defaultService = statuspage.DefaultServiceName
	}

	registry := cfg.Registry
	if registry == nil {
		registry = cfg.Sweep.status.Registry()
	}

	return &JobProcessor{
		sweep:          cfg.Sweep,
		registry:       registry,
		defaultService: defaultService,
		logger:         cfg.Logger,
	}
}

// Process runs the job encoded in data.
func (p *JobProcessor) Process(ctx context.Context, data []byte) error {
	startTime := time.Now()

	var msg SweepMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var err error
	switch msg.JobType {
	case JobTypeStatusSweep:
		err = p.handleStatusSweep(ctx, msg)
	case JobTypeHealthCheck:
		err = p.handleHealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	return nil
}

func (p *JobProcessor) handleStatusSweep(ctx context.Context, msg SweepMessage) error {
	services, err := p.resolve(msg.Services)
	if err != nil {
		return err
	}

	var result *SweepResult
	if len(services) == 0 {
		result = p.sweep.Run(ctx)
	} else {
		result = p.sweep.RunServices(ctx, services)
	}

	for _, r := range result.Results {
		event := p.logger.Info()
		if r.Outcome != OutcomeOK {
			event = p.logger.Warn()
		}
		event.
			Str("service", r.Service).
			Str("outcome", string(r.Outcome)).
			Int("components", r.Components).
			Str("message", r.Message).
			Msg("service status")
	}

	// Every request failing points at our own connectivity, not the upstreams.
	if result.Total > 0 && result.RequestErrors == result.Total {
		return fmt.Errorf("all %d status requests failed", result.Total)
	}

	return nil
}

func (p *JobProcessor) handleHealthCheck(ctx context.Context) error {
	p.logger.Debug().Msg("running health check")

	services, err := p.resolve([]string{p.defaultService})
	if err != nil {
		return err
	}

	result := p.sweep.RunServices(ctx, services)
	if result.Failed() > 0 {
		return fmt.Errorf("health check failed: %s", result.Results[0].Message)
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

func (p *JobProcessor) resolve(names []string) ([]statuspage.Service, error) {
	services := make([]statuspage.Service, 0, len(names))
	for _, name := range names {
		svc, err := p.registry.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		services = append(services, svc)
	}
	return services, nil
}
