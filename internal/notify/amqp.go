package notify

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Mutter0815/Announcer/pkg/model"
)

type publisher interface {
	PublishMessage(ctx context.Context, id string, body []byte) error
}

// AMQP hands each delivery to the connector gateway through the outbound
// queue. The AMQP message id doubles as the delivery handle.
type AMQP struct {
	Pub   publisher
	NewID func() string
}

func NewAMQP(pub publisher) *AMQP {
	return &AMQP{Pub: pub, NewID: uuid.NewString}
}

func (a *AMQP) SendToUser(ctx context.Context, to UserTarget, c Content) (string, error) {
	return a.send(ctx, model.OutboundMessage{
		Kind:           model.OutboundKindUser,
		ServiceURL:     to.ServiceURL,
		TenantID:       to.TenantID,
		ConversationID: to.ConversationID,
		Alert:          true,
	}, c)
}

func (a *AMQP) SendToChannel(ctx context.Context, to ChannelTarget, c Content) (string, error) {
	return a.send(ctx, model.OutboundMessage{
		Kind:       model.OutboundKindChannel,
		ServiceURL: to.ServiceURL,
		BotID:      to.BotID,
		ChannelID:  to.ChannelID,
		Alert:      true,
	}, c)
}

func (a *AMQP) send(ctx context.Context, msg model.OutboundMessage, c Content) (string, error) {
	content, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	msg.ID = a.NewID()
	msg.Content = content

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode outbound message: %w", err)
	}
	if err := a.Pub.PublishMessage(ctx, msg.ID, body); err != nil {
		return "", fmt.Errorf("publish outbound message: %w", err)
	}
	return msg.ID, nil
}
