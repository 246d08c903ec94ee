package notification

import (
	"context"
	"encoding/json"

	"github.com/streadway/amqp"

	"github.com/coreledger/platform/internal/common"
)

// amqpMessage is the queue payload handed to whatever sms/whatsapp gateway
// worker consumes the exchange this adapter publishes to.
type amqpMessage struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Body    string `json:"body"`
}

// AMQPQueueAdapter fans sms/whatsapp notifications out to a durable queue
// rather than calling a provider directly, mirroring the "independent
// per-channel attempt" fan-out spec §4.12 calls for without this module
// taking on a direct dependency on any one SMS/WhatsApp gateway's HTTP API.
// `github.com/streadway/amqp` is declared in the teacher's go.mod but no
// file in its tree imports it; this is the dependency's first real use in
// this lineage, following the library's standard publish API since there
// is no in-pack example to mirror call-site style from.
type AMQPQueueAdapter struct {
	channel   *amqp.Channel
	queueName string
}

// NewAMQPQueueAdapter declares queueName (durable, non-exclusive) on conn
// and returns an adapter publishing to it.
func NewAMQPQueueAdapter(conn *amqp.Connection, queueName string) (*AMQPQueueAdapter, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, common.NewDependencyUnavailable("failed to open amqp channel", "err", err.Error())
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, common.NewDependencyUnavailable("failed to declare amqp queue", "queue", queueName, "err", err.Error())
	}
	return &AMQPQueueAdapter{channel: ch, queueName: queueName}, nil
}

func (a *AMQPQueueAdapter) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(amqpMessage{Channel: string(n.Channel), To: n.To, Body: n.Body})
	if err != nil {
		return err
	}

	err = a.channel.Publish("", a.queueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return common.NewDependencyUnavailable("failed to publish to amqp queue", "queue", a.queueName, "err", err.Error())
	}
	return nil
}
