package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type BetPlaced struct {
	BetID           string `json:"bet_id"`
	MarketID        string `json:"market_id"`
	UserID          string `json:"user_id"`
	Side            string `json:"side"`
	Stake           int64  `json:"stake"`
	PotentialPayout int64  `json:"potential_payout"`
	TsUnixMs        int64  `json:"ts_unix_ms"`
}

type MarketResolved struct {
	MarketID     string `json:"market_id"`
	Result       string `json:"result"`
	WinnersCount int    `json:"winners_count"`
	TotalPayout  int64  `json:"total_payout"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}

type MarketCancelled struct {
	MarketID      string `json:"market_id"`
	RefundedCount int    `json:"refunded_count"`
	TotalRefunded int64  `json:"total_refunded"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}

// Publisher emits settlement events for downstream consumers. Publishing
// happens after commit and never fails the originating request; a lost event
// is logged, the ledger stays the source of truth.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher returns a disabled publisher when no brokers are configured.
func NewPublisher(brokers, topic string, logger *zap.Logger) *Publisher {
	p := &Publisher{logger: logger}
	if brokers == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return p
}

func (p *Publisher) BetPlaced(ctx context.Context, e BetPlaced) {
	e.TsUnixMs = time.Now().UnixMilli()
	p.publish(ctx, "bet.placed", e.MarketID, e)
}

func (p *Publisher) MarketResolved(ctx context.Context, e MarketResolved) {
	e.TsUnixMs = time.Now().UnixMilli()
	p.publish(ctx, "market.resolved", e.MarketID, e)
}

func (p *Publisher) MarketCancelled(ctx context.Context, e MarketCancelled) {
	e.TsUnixMs = time.Now().UnixMilli()
	p.publish(ctx, "market.cancelled", e.MarketID, e)
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, v any) {
	if p.writer == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
