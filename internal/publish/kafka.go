package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	. "matchbook/internal/common"
	"matchbook/internal/config"
	"matchbook/internal/engine"

	"github.com/rs/zerolog/log"
	kafka "github.com/segmentio/kafka-go"
)

const TakerSideHeader = "taker-side"

var ErrNoBrokers = errors.New("no kafka brokers configured")

// Writer is the subset of *kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TradeMessage is the value of every published message.
type TradeMessage struct {
	Seq      uint64 `json:"seq"`
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
	Taker    Side   `json:"taker"`
}

// KafkaPublisher streams every trade to a Kafka topic, one message per trade,
// keyed by price. It relies on the engine calling it from a single writer.
type KafkaPublisher struct {
	w   Writer
	seq uint64
}

var _ engine.TradeReporter = (*KafkaPublisher)(nil)

func NewKafkaPublisher(cfg config.Kafka) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Msg("trade publish failed")
			}
		},
	}
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka trade publisher configured")
	return NewKafkaPublisherWithWriter(w), nil
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) ReportTrades(ctx context.Context, taker Order, trades []Trade) error {
	msgs := make([]kafka.Message, 0, len(trades))
	for _, trade := range trades {
		p.seq++
		value, err := json.Marshal(TradeMessage{
			Seq:      p.seq,
			Price:    trade.Price,
			Quantity: trade.Quantity,
			Taker:    taker.Side,
		})
		if err != nil {
			return fmt.Errorf("encode trade: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(trade.Price, 10)),
			Value: value,
			Headers: []kafka.Header{
				{Key: TakerSideHeader, Value: []byte(taker.Side.String())},
			},
		})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish trades: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
