package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func terminalAttempt(state checkout.State) *checkout.Attempt {
	done := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	a := &checkout.Attempt{
		ID:            "att-1",
		SessionID:     "sess-1",
		UserID:        "user-1",
		Entity:        domain.EntityEvent,
		EntityID:      "7",
		State:         state,
		PreviousState: checkout.StateVerifyingPayment,
		BookingID:     "bk-1",
		OrderID:       "order_1",
		PaymentID:     "pay_1",
		Draft: checkout.BookingDraft{
			VisitDate:   "2026-10-20",
			Lines:       []checkout.DraftLine{{TicketTypeID: "adult", Quantity: 3}},
			TotalAmount: domain.FromMajor(1350),
			Contact:     checkout.Contact{Email: "asha@example.com"},
		},
		CompletedAt: &done,
	}
	if state == checkout.StateFailed {
		a.Failure = &checkout.Failure{
			Reason:      checkout.ReasonVerificationTimeout,
			Message:     checkout.CannedMessage(checkout.ReasonVerificationTimeout),
			Compensated: true,
		}
	}
	return a
}

func TestPublishOutcome_Confirmed(t *testing.T) {
	producer := &fakeProducer{}
	p := NewKafkaPublisher(producer, nil)

	require.NoError(t, p.PublishOutcome(context.Background(), terminalAttempt(checkout.StateConfirmed)))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, TopicCheckoutConfirmed, rec.Topic)
	assert.Equal(t, "bk-1", string(rec.Key))

	var e CheckoutConfirmedEvent
	require.NoError(t, json.Unmarshal(rec.Value, &e))
	assert.Equal(t, "pay_1", e.PaymentID)
	assert.Equal(t, 3, e.Quantity)
	assert.Equal(t, domain.FromMajor(1350), e.TotalAmount)
	assert.Equal(t, "asha@example.com", e.ContactEmail)
}

func TestPublishOutcome_Failed(t *testing.T) {
	producer := &fakeProducer{}
	p := NewKafkaPublisher(producer, nil)

	require.NoError(t, p.PublishOutcome(context.Background(), terminalAttempt(checkout.StateFailed)))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, TopicCheckoutFailed, rec.Topic)

	var e CheckoutFailedEvent
	require.NoError(t, json.Unmarshal(rec.Value, &e))
	assert.Equal(t, checkout.ReasonVerificationTimeout, e.Reason)
	assert.Equal(t, checkout.StateVerifyingPayment, e.FailedState)
	assert.True(t, e.Compensated)
}

func TestPublishOutcome_FailedBeforeBookingKeyedByAttempt(t *testing.T) {
	a := terminalAttempt(checkout.StateFailed)
	a.BookingID = ""
	assert.Equal(t, "att-1", newFailedEvent(a).Key())
}

func TestPublishOutcome_IgnoresNonTerminal(t *testing.T) {
	producer := &fakeProducer{}
	p := NewKafkaPublisher(producer, nil)

	require.NoError(t, p.PublishOutcome(context.Background(), terminalAttempt(checkout.StateAwaitingGatewayResult)))
	assert.Empty(t, producer.records)
}

func TestPublishOutcome_ProduceError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	p := NewKafkaPublisher(producer, nil)

	err := p.PublishOutcome(context.Background(), terminalAttempt(checkout.StateConfirmed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicCheckoutConfirmed)
}

func TestNewKafkaClient_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaClient(KafkaConfig{})
	assert.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var p checkout.OutcomePublisher = NoopPublisher{}
	assert.NoError(t, p.PublishOutcome(context.Background(), terminalAttempt(checkout.StateConfirmed)))
}
