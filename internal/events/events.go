// Package events publishes order lifecycle events for downstream consumers
// such as fulfilment or analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"beanstore/internal/domain"
)

type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderStatusChanged Type = "order.status_changed"
)

type OrderEvent struct {
	Type        Type               `json:"type"`
	OrderID     string             `json:"order_id"`
	OrderCode   string             `json:"order_code"`
	CustomerID  *string            `json:"customer_id,omitempty"`
	From        domain.OrderStatus `json:"from,omitempty"`
	To          domain.OrderStatus `json:"to"`
	FinalAmount decimal.Decimal    `json:"final_amount"`
	At          time.Time          `json:"at"`
}

func Placed(o domain.Order) OrderEvent {
	return OrderEvent{
		Type: OrderPlaced, OrderID: o.ID, OrderCode: o.OrderCode, CustomerID: o.CustomerID,
		To: o.Status, FinalAmount: o.FinalAmount, At: o.CreatedAt,
	}
}

func StatusChanged(o domain.Order, from domain.OrderStatus) OrderEvent {
	return OrderEvent{
		Type: OrderStatusChanged, OrderID: o.ID, OrderCode: o.OrderCode, CustomerID: o.CustomerID,
		From: from, To: o.Status, FinalAmount: o.FinalAmount, At: o.UpdatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by order id so that all
// events of an order land on the same partition in order.
type KafkaPublisher struct {
	w MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher { return &KafkaPublisher{w: w} }

func (p *KafkaPublisher) Publish(ctx context.Context, e OrderEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.OrderID),
		Value: b,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }
func (Nop) Close() error                              { return nil }
