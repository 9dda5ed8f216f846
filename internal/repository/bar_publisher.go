package repository

import (
	"context"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	pkgkafka "PriceShaper/pkg/kafka"
)

// KafkaBarPublisher publishes synthesized bars keyed by symbol so each
// symbol's stream stays ordered on one partition.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaBarPublisher(producer *pkgkafka.Producer, topic string) *KafkaBarPublisher {
	return &KafkaBarPublisher{producer: producer, topic: topic}
}

// BarMessage is the wire shape of one adjusted bar.
type BarMessage struct {
	Symbol              string  `json:"symbol"`
	Timestamp           int64   `json:"t"`
	Open                float64 `json:"o"`
	High                float64 `json:"h"`
	Low                 float64 `json:"l"`
	Close               float64 `json:"c"`
	Volume              float64 `json:"v"`
	ManipulationPercent float64 `json:"manipulation_percent"`
	NewPeriod           bool    `json:"new_period"`
	UpdatedAt           int64   `json:"updated_at,omitempty"`
}

func NewBarMessage(b models.Bar, newPeriod bool) BarMessage {
	return BarMessage{
		Symbol:              b.Symbol,
		Timestamp:           b.Timestamp,
		Open:                b.Open,
		High:                b.High,
		Low:                 b.Low,
		Close:               b.Close,
		Volume:              b.Volume,
		ManipulationPercent: b.ManipulationPercent,
		NewPeriod:           newPeriod,
		UpdatedAt:           b.UpdatedAt,
	}
}

func (p *KafkaBarPublisher) Publish(ctx context.Context, b models.Bar, newPeriod bool) error {
	return p.producer.Publish(ctx, p.topic, []byte(b.Symbol), NewBarMessage(b, newPeriod))
}

func (p *KafkaBarPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.BarPublisher = (*KafkaBarPublisher)(nil)
