package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the refresh subscription.
const (
	JobWeatherRefresh = "weather_refresh"
	JobHealthCheck    = "health_check"
)

var (
	// ErrUnknownJob is returned by Dispatch for unrecognized job types.
	ErrUnknownJob = errors.New("unknown job type")

	// ErrMalformedMessage is returned by Dispatch for bodies that are not JSON.
	ErrMalformedMessage = errors.New("malformed message")
)

// RefreshMessage is the body of a refresh trigger.
type RefreshMessage struct {
	JobType string `json:"job_type"`
}

// Refresher is what the Pub/Sub handler triggers. *RefreshJob satisfies it.
type Refresher interface {
	Run(ctx context.Context) *RefreshResult
	HealthCheck(ctx context.Context) error
}

// Dispatcher runs the job named by a message.
type Dispatcher struct {
	refresher Refresher
	logger    zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(refresher Refresher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{refresher: refresher, logger: logger}
}

// Dispatch decodes data and runs the job. A refresh where more targets failed
// than succeeded is an error so the message is redelivered.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	d.logger.Debug().Str("job_type", msg.JobType).Msg("dispatching job")

	switch msg.JobType {
	case JobWeatherRefresh:
		result := d.refresher.Run(ctx)
		if result.Failed > result.Successful {
			return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalTargets)
		}
		return nil
	case JobHealthCheck:
		if err := d.refresher.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// PubSubHandler receives refresh triggers from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Refresher        Refresher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A refresh run touches every target; one at a time is enough.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.Refresher, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, h.handleMessage)
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJob), errors.Is(err, ErrMalformedMessage):
		// Ack so it is not redelivered forever.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	}
}
