// Package notification implements the Notification Dispatcher (spec §4.12,
// component C12): a multi-channel Send/SendMultiChannel surface backed by a
// persisted Notification record, plus an event-driven fan-out that
// translates C3 domain events into dispatches.
package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// Channel is one of the six delivery mechanisms spec §4.12 names.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
	ChannelSocket   Channel = "socket"
	ChannelSSE      Channel = "sse"
)

// Status is the Notification state machine of spec §4.12:
// "pending→queued→sent→delivered, or →failed/bounced".
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusBounced   Status = "bounced"
)

// Notification is the persisted record of one dispatch attempt on one
// channel.
type Notification struct {
	common.BaseEntity `bson:",inline"`

	Channel    Channel   `json:"channel" bson:"channel"`
	To         string    `json:"to,omitempty" bson:"to,omitempty"`
	UserID     uuid.UUID `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Subject    string    `json:"subject,omitempty" bson:"subject,omitempty"`
	Body       string    `json:"body" bson:"body"`
	Status     Status    `json:"status" bson:"status"`
	FailReason string    `json:"fail_reason,omitempty" bson:"fail_reason,omitempty"`
	SentAt     time.Time `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
}

// NewNotification stamps a fresh pending Notification for owner.
func NewNotification(owner common.ResourceOwner, channel Channel, to string, userID uuid.UUID, subject, body string) *Notification {
	return &Notification{
		BaseEntity: common.NewEntity(owner),
		Channel:    channel,
		To:         to,
		UserID:     userID,
		Subject:    subject,
		Body:       body,
		Status:     StatusPending,
	}
}

// Request is what a caller passes to Send.
type Request struct {
	Channel Channel
	To      string
	UserID  uuid.UUID
	Subject string
	Body    string
}

// validate enforces spec §4.12's per-channel requirements: "socket/sse
// require a userId; other channels require a resolvable to".
func (req Request) validate() error {
	switch req.Channel {
	case ChannelSocket, ChannelSSE:
		if req.UserID == uuid.Nil {
			return common.NewInvalidInput("socket/sse notifications require a userId", "channel", string(req.Channel))
		}
	case ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush:
		if req.To == "" {
			return common.NewInvalidInput("this channel requires a resolvable to address", "channel", string(req.Channel))
		}
	default:
		return common.NewInvalidInput("unknown notification channel", "channel", string(req.Channel))
	}
	return nil
}
