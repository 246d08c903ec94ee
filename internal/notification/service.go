package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Service implements Send/SendMultiChannel (spec §4.12).
type Service struct {
	notifications Repository
	registry      *Registry
}

func NewService(notifications Repository, registry *Registry) *Service {
	return &Service{notifications: notifications, registry: registry}
}

// Send routes req to its channel's adapter, persisting the attempt as a
// Notification whose status moves pending -> queued -> sent|failed.
func (s *Service) Send(ctx context.Context, owner common.ResourceOwner, req Request) (uuid.UUID, error) {
	if err := req.validate(); err != nil {
		return uuid.Nil, err
	}

	adapter, ok := s.registry.Get(req.Channel)
	if !ok {
		return uuid.Nil, common.NewInvalidInput("no adapter registered for channel", "channel", string(req.Channel))
	}

	n := NewNotification(owner, req.Channel, req.To, req.UserID, req.Subject, req.Body)
	n, err := s.notifications.Create(ctx, n)
	if err != nil {
		return uuid.Nil, err
	}

	n.Status = StatusQueued
	if _, err := s.notifications.Update(ctx, n); err != nil {
		return n.GetID(), err
	}

	if sendErr := adapter.Send(ctx, n); sendErr != nil {
		n.Status = StatusFailed
		n.FailReason = sendErr.Error()
		_, _ = s.notifications.Update(ctx, n)
		return n.GetID(), sendErr
	}

	n.Status = StatusSent
	n.SentAt = time.Now().UTC()
	_, _ = s.notifications.Update(ctx, n)
	return n.GetID(), nil
}

// ChannelResult is one channel's outcome within a SendMultiChannel fan-out.
type ChannelResult struct {
	Channel Channel
	ID      uuid.UUID
	Err     error
}

// SendMultiChannel dispatches req independently on each of channels: one
// channel's failure does not prevent the others from being attempted.
func (s *Service) SendMultiChannel(ctx context.Context, owner common.ResourceOwner, req Request, channels []Channel) []ChannelResult {
	results := make([]ChannelResult, 0, len(channels))
	for _, ch := range channels {
		attempt := req
		attempt.Channel = ch
		id, err := s.Send(ctx, owner, attempt)
		results = append(results, ChannelResult{Channel: ch, ID: id, Err: err})
	}
	return results
}

// MarkDelivered advances a sent Notification to delivered, e.g. from a
// provider delivery-receipt webhook.
func (s *Service) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	n, err := s.notifications.FindById(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != StatusSent {
		return common.NewConflict("notification is not in sent state", "id", id, "status", string(n.Status))
	}
	n.Status = StatusDelivered
	_, err = s.notifications.Update(ctx, n)
	return err
}

// MarkBounced records a hard delivery failure reported after the fact
// (e.g. an email bounce webhook), moving a sent Notification to bounced.
func (s *Service) MarkBounced(ctx context.Context, id uuid.UUID, reason string) error {
	n, err := s.notifications.FindById(ctx, id)
	if err != nil {
		return err
	}
	n.Status = StatusBounced
	n.FailReason = reason
	_, err = s.notifications.Update(ctx, n)
	return err
}

// logSendFailure is used by the event subscriber: handler failures must
// never propagate back to the publisher (spec §4.12), only be logged.
func logSendFailure(ctx context.Context, eventType string, channel Channel, err error) {
	slog.ErrorContext(ctx, "notification dispatch failed for integration event",
		"event_type", eventType, "channel", string(channel), "err", err)
}
