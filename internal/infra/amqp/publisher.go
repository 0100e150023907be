package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"survey-service/internal/domain"
)

// RoutingKeySubmissionCreated is used for every finished submission.
const RoutingKeySubmissionCreated = "submission.created"

// SubmissionEvent is the message body of RoutingKeySubmissionCreated.
type SubmissionEvent struct {
	SubmissionID string    `json:"submissionId"`
	SurveyID     string    `json:"surveyId"`
	UserID       string    `json:"userId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends submission events to a durable topic exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
	log      *zap.Logger
}

// Dial connects to RabbitMQ and declares exchange.
func Dial(url, exchange string, log *zap.Logger) (*Publisher, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange, log)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return p, conn, nil
}

func NewPublisher(ch Channel, exchange string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	log.Info("submission exchange declared", zap.String("exchange", exchange))
	return &Publisher{ch: ch, exchange: exchange, log: log.Named("amqp")}, nil
}

// PublishSubmission sends a persistent submission.created message.
func (p *Publisher) PublishSubmission(ctx context.Context, sub domain.Submission) error {
	body, err := json.Marshal(SubmissionEvent{
		SubmissionID: sub.ID,
		SurveyID:     sub.SurveyID,
		UserID:       sub.UserID,
		CreatedAt:    sub.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal submission event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKeySubmissionCreated,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    sub.ID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish submission event: %w", err)
	}
	p.log.Debug("submission event published", zap.String("submission", sub.ID))
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
