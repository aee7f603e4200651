// Package notify turns relationship transitions into realtime events and fans
// them out to every live connection of the affected users.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uconnect/campus/internal/models"
	"github.com/uconnect/campus/internal/realtime"
)

// Publisher hands envelopes to other server instances.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Dispatcher delivers events through a connection Registry. Delivery is best
// effort: offline users and failing connections are logged and skipped, and
// nothing is reported back to the caller.
type Dispatcher struct {
	registry realtime.Registry
	relay    Publisher
	logger   *logrus.Logger

	// Now stamps outgoing events.
	Now func() time.Time
}

func NewDispatcher(registry realtime.Registry, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{registry: registry, logger: logger, Now: time.Now}
}

// UseRelay routes every event through p so that all instances deliver it to
// their local connections. Local delivery is used whenever p fails.
func (d *Dispatcher) UseRelay(p Publisher) {
	d.relay = p
}

// RequestSent notifies the recipient of a new request.
func (d *Dispatcher) RequestSent(ctx context.Context, req *models.FriendRequest) {
	d.Emit(ctx, req.ToID, Event{
		Type:          EventRequestReceived,
		SubjectUserID: req.FromID,
		RequestID:     requestID(req),
		Profile:       req.Requester,
	})
}

// RequestAccepted tells the requester and every session of the accepter.
func (d *Dispatcher) RequestAccepted(ctx context.Context, req *models.FriendRequest, accepter, requester *models.PublicProfile) {
	d.Emit(ctx, req.FromID, Event{
		Type:          EventAccepted,
		SubjectUserID: req.ToID,
		RequestID:     requestID(req),
		Profile:       accepter,
	})
	d.Emit(ctx, req.ToID, Event{
		Type:          EventConfirmed,
		SubjectUserID: req.FromID,
		RequestID:     requestID(req),
		Profile:       requester,
	})
}

// RequestRejected tells the requester.
func (d *Dispatcher) RequestRejected(ctx context.Context, req *models.FriendRequest, rejecter *models.PublicProfile) {
	d.Emit(ctx, req.FromID, Event{
		Type:          EventRejected,
		SubjectUserID: req.ToID,
		RequestID:     requestID(req),
		Profile:       rejecter,
	})
}

// FriendRemoved tells other that by removed them.
func (d *Dispatcher) FriendRemoved(ctx context.Context, by, other uuid.UUID, remover *models.PublicProfile) {
	d.Emit(ctx, other, Event{
		Type:          EventRemoved,
		SubjectUserID: by,
		Profile:       remover,
	})
}

// Emit stamps ev and sends it to target, through the relay when one is set.
func (d *Dispatcher) Emit(ctx context.Context, target uuid.UUID, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.Now().UTC()
	}
	if d.relay != nil {
		// the triggering request may already be finished
		err := d.relay.Publish(context.WithoutCancel(ctx), Envelope{Target: target, Event: ev})
		if err == nil {
			return
		}
		d.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": target,
			"event":   ev.Type,
		}).Warn("relay publish failed, delivering locally")
	}
	d.Deliver(target, ev)
}

// Deliver writes ev to every local connection of target and returns how many
// accepted it.
func (d *Dispatcher) Deliver(target uuid.UUID, ev Event) int {
	log := d.logger.WithFields(logrus.Fields{"user_id": target, "event": ev.Type})

	conns := d.registry.ConnectionsFor(target)
	if len(conns) == 0 {
		log.Debug("user offline, event dropped")
		return 0
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).Error("marshal event")
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if err := safeSend(c, data); err != nil {
			log.WithError(err).WithField("conn_id", c.ID()).Warn("event delivery failed")
			continue
		}
		delivered++
	}
	return delivered
}

// safeSend isolates a misbehaving connection from the rest of the fan-out.
func safeSend(c realtime.Connection, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	return c.Send(data)
}

func requestID(req *models.FriendRequest) *uuid.UUID {
	id := req.ID
	return &id
}
