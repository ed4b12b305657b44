package broker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lendcore/loan-engine/internal/domain"
)

// Publisher is the audit-stream surface the services and the ledger depend
// on. Publishing is best effort: callers log failures and continue, state
// changes are never rolled back because the stream was down.
type Publisher interface {
	PublishCreditEvent(ctx context.Context, event *domain.CreditEvent) error
	PublishLoanCreated(ctx context.Context, event *domain.LoanCreatedEvent) error
	PublishLoanPaidOff(ctx context.Context, event *domain.LoanPaidOffEvent) error
	PublishPaymentApplied(ctx context.Context, event *domain.PaymentAppliedEvent) error
	PublishSagaEvent(ctx context.Context, event *domain.SagaEvent) error
}

// EventPublisher publishes domain events through a Kafka producer
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (ep *EventPublisher) PublishCreditEvent(ctx context.Context, event *domain.CreditEvent) error {
	stamp(&event.BaseEvent)
	return ep.producer.PublishEvent(ctx, "customer-"+event.CustomerID, event)
}

func (ep *EventPublisher) PublishLoanCreated(ctx context.Context, event *domain.LoanCreatedEvent) error {
	stamp(&event.BaseEvent)
	return ep.producer.PublishEvent(ctx, "loan-"+event.LoanID, event)
}

func (ep *EventPublisher) PublishLoanPaidOff(ctx context.Context, event *domain.LoanPaidOffEvent) error {
	stamp(&event.BaseEvent)
	return ep.producer.PublishEvent(ctx, "loan-"+event.LoanID, event)
}

func (ep *EventPublisher) PublishPaymentApplied(ctx context.Context, event *domain.PaymentAppliedEvent) error {
	stamp(&event.BaseEvent)
	return ep.producer.PublishEvent(ctx, "loan-"+event.LoanID, event)
}

func (ep *EventPublisher) PublishSagaEvent(ctx context.Context, event *domain.SagaEvent) error {
	stamp(&event.BaseEvent)
	return ep.producer.PublishEvent(ctx, "saga-"+event.SagaID, event)
}

// stamp fills in the event envelope when the caller left it empty
func stamp(base *domain.BaseEvent) {
	if base.EventID == "" {
		base.EventID = uuid.New().String()
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
}

// NopPublisher discards all events; used in tests and when the stream is
// disabled by configuration.
type NopPublisher struct{}

func (NopPublisher) PublishCreditEvent(ctx context.Context, event *domain.CreditEvent) error {
	return nil
}

func (NopPublisher) PublishLoanCreated(ctx context.Context, event *domain.LoanCreatedEvent) error {
	return nil
}

func (NopPublisher) PublishLoanPaidOff(ctx context.Context, event *domain.LoanPaidOffEvent) error {
	return nil
}

func (NopPublisher) PublishPaymentApplied(ctx context.Context, event *domain.PaymentAppliedEvent) error {
	return nil
}

func (NopPublisher) PublishSagaEvent(ctx context.Context, event *domain.SagaEvent) error {
	return nil
}
