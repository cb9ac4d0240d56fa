package webrtc

import "github.com/vmihailenco/msgpack/v5"

const (
	MessageTypeHello = "hello"
	MessageTypePose  = "pose"
)

// Message represents all data channel messages
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload is sent by both ends when the channel opens
type HelloPayload struct {
	PeerID  string `msgpack:"peerId"`
	Version string `msgpack:"version"`
}

// PosePayload carries one encoded pose record
type PosePayload struct {
	Seq    uint32 `msgpack:"seq"`
	Record []byte `msgpack:"record"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}

// Marshal encodes a message for the wire.
func Marshal(t string, payload any) ([]byte, error) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(msg)
}
