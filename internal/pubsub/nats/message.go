package nats

import (
	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/livequery/internal/pubsub"
)

type message struct {
	msg jetstream.Msg
}

// WrapMessage adapts a jetstream.Msg to pubsub.Message.
func WrapMessage(msg jetstream.Msg) pubsub.Message {
	return &message{msg: msg}
}

func (m *message) Data() []byte    { return m.msg.Data() }
func (m *message) Subject() string { return m.msg.Subject() }
func (m *message) Ack() error      { return m.msg.Ack() }
func (m *message) Nak() error      { return m.msg.Nak() }
func (m *message) Term() error     { return m.msg.Term() }

func (m *message) Metadata() (pubsub.MessageMetadata, error) {
	md, err := m.msg.Metadata()
	if err != nil {
		return pubsub.MessageMetadata{}, err
	}
	return pubsub.MessageMetadata{
		NumDelivered: md.NumDelivered,
		Timestamp:    md.Timestamp,
		Subject:      m.msg.Subject(),
		Stream:       md.Stream,
		Consumer:     md.Consumer,
	}, nil
}
