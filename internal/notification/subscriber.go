package notification

import (
	"context"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/eventbus"
)

// Subscriber translates domain events delivered on the `integration:*`
// channels (spec §6) into Send calls, isolated from the publisher: per
// spec §4.12, "handler failures do not propagate back to the publisher" —
// every translation error here is logged, never returned to the bus.
type Subscriber struct {
	service *Service
}

func NewSubscriber(service *Service) *Subscriber {
	return &Subscriber{service: service}
}

// Attach registers this subscriber's handlers on bus for every
// `integration:*` channel spec §6 names, returning a single combined
// unsubscribe function.
func (s *Subscriber) Attach(bus eventbus.Bus) (unsubscribe func()) {
	unsubAuth := bus.Subscribe(eventbus.ChannelAuth, s.handle)
	unsubPayment := bus.Subscribe(eventbus.ChannelPayment, s.handle)
	unsubBonus := bus.Subscribe(eventbus.ChannelBonus, s.handle)
	return func() {
		unsubAuth()
		unsubPayment()
		unsubBonus()
	}
}

func (s *Subscriber) handle(env eventbus.Envelope) error {
	ctx := context.Background()
	owner := common.ResourceOwner{TenantID: env.TenantID, UserID: env.UserID}

	req, ok := translate(env)
	if !ok {
		return nil
	}

	if _, err := s.service.Send(ctx, owner, req); err != nil {
		logSendFailure(ctx, env.EventType, req.Channel, err)
	}
	return nil
}

// translate maps a known domain event type to a socket notification
// request. Event types this dispatcher doesn't recognize are silently
// skipped: new integration events are opt-in, not a default broadcast.
func translate(env eventbus.Envelope) (Request, bool) {
	switch env.EventType {
	case "user.registered":
		return Request{Channel: ChannelSocket, UserID: env.UserID, Subject: "Welcome", Body: "Your account has been created."}, true
	case "payment.completed":
		return Request{Channel: ChannelSocket, UserID: env.UserID, Subject: "Deposit confirmed", Body: "Your deposit has been credited."}, true
	case "bonus.wagering_completed":
		return Request{Channel: ChannelSocket, UserID: env.UserID, Subject: "Bonus converted", Body: "Your bonus has been converted to real balance."}, true
	default:
		return Request{}, false
	}
}
