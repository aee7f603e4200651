package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Bus is a broadcast channel shared by all server instances.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	// Subscribe calls fn for every message until ctx ends.
	Subscribe(ctx context.Context, fn func(payload []byte)) error
}

// Relay carries envelopes over a Bus and delivers received ones through the
// local Dispatcher.
type Relay struct {
	bus        Bus
	dispatcher *Dispatcher
	logger     *logrus.Logger
}

func NewRelay(bus Bus, dispatcher *Dispatcher, logger *logrus.Logger) *Relay {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Relay{bus: bus, dispatcher: dispatcher, logger: logger}
}

func (r *Relay) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.bus.Publish(ctx, data)
}

// Run delivers relayed envelopes until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	return r.bus.Subscribe(ctx, func(payload []byte) {
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			r.logger.WithError(err).Warn("relay: invalid envelope")
			return
		}
		r.dispatcher.Deliver(env.Target, env.Event)
	})
}
