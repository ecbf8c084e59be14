package realtime

import (
	"context"
	"log/slog"
	"time"

	brokerkafka "github.com/BearBump/ParcelDesk/internal/broker/kafka"
	"github.com/BearBump/ParcelDesk/internal/broker/messages"
)

type eventConsumer interface {
	Consume(ctx context.Context, handler brokerkafka.Handler) error
}

// KafkaSource reads the parcel events topic instead of the socket.
type KafkaSource struct {
	c eventConsumer
}

func NewKafkaSource(c eventConsumer) *KafkaSource {
	return &KafkaSource{c: c}
}

func (k *KafkaSource) Run(ctx context.Context, publish func(Event)) error {
	return k.c.Consume(ctx, func(key, value []byte) error {
		ev, err := messages.Decode(key, value)
		if err != nil {
			// poison records are skipped and committed
			slog.Warn("skip parcel event", "key", string(key), "error", err.Error())
			return nil
		}
		p := ev.Parcel
		publish(Event{Kind: Kind(ev.Name), Parcel: &p, At: time.Now()})
		return nil
	})
}
