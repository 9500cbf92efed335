package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Lifecycle event names published for downstream consumers.
const (
	EventResultSubmitted       = "result.submitted"
	EventResultApproved        = "result.approved"
	EventResultRejected        = "result.rejected"
	EventResultsPublished      = "results.published"
	EventResultsUnpublished    = "results.unpublished"
	EventUpdateRequested       = "result.update_requested"
	EventUpdateRequestApproved = "result.update_approved"
	EventUpdateRequestRejected = "result.update_rejected"
)

// ResultEvent is the envelope published whenever a result changes state.
type ResultEvent struct {
	Source  string                 `json:"source"`
	Event   string                 `json:"event"`
	SentAt  time.Time              `json:"sent_at"`
	Payload map[string]interface{} `json:"payload"`
}

// EventPublisher fans lifecycle events out to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload map[string]interface{})
}

type eventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
}

// NewEventPublisher constructs the lifecycle event publisher. Both transports
// are optional; a nil client simply skips that leg.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":results"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".results"
	}

	return &eventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_publisher").Logger(),
		nodeID:       uuid.NewString(),
	}
}

// Publish serializes and fans out the event. Delivery is best effort: the
// write that triggered the event has already committed.
func (p *eventPublisher) Publish(ctx context.Context, event string, payload map[string]interface{}) {
	envelope := ResultEvent{
		Source:  p.nodeID,
		Event:   event,
		SentAt:  time.Now().UTC(),
		Payload: payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error().Err(err).Str("event", event).Msg("failed to encode lifecycle event")
		return
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, body).Err(); err != nil {
			p.logger.Warn().Err(err).Str("event", event).Msg("failed to publish lifecycle event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, body); err != nil {
			p.logger.Warn().Err(err).Str("event", event).Msg("failed to publish lifecycle event to nats")
		}
	}
}
