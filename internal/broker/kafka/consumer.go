package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler receives one record. A non-nil error stops consumption without commit.
type Handler func(key, value []byte) error

// liveMaxWait bounds how long a fetch waits to fill a batch. Parcel events
// are pushed to a dashboard, so one record is worth delivering at once.
const liveMaxWait = 250 * time.Millisecond

type Consumer struct {
	r messageReader
	// readers without a group cannot commit
	noCommit bool
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		MaxWait:           liveMaxWait,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		// nothing to resume from, start at the tail like a socket would
		cfg.Topic = topic
		cfg.StartOffset = kafka.LastOffset
	}
	return &Consumer{
		r:        kafka.NewReader(cfg),
		noCommit: groupID == "",
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume runs until ctx is done (returns nil) or the reader/handler fails.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			return err
		}
		if c.noCommit {
			continue
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "commit message")
		}
	}
}
