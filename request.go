package pokerclient

import "encoding/json"

// MessageType is the discriminator of every outbound message on the remote channel.
type MessageType string

const (
	MessageType_JoinRoom    MessageType = "join-room"
	MessageType_ToggleReady MessageType = "toggle-ready"
	MessageType_GameAction  MessageType = "game-action"
	MessageType_SendMessage MessageType = "send-message"
)

// Message is the wire envelope for all outbound messages.
// Sends are fire-and-forget; the authoritative result always comes back as a
// later inbound event, never as a reply to the send itself.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRoomParam struct {
	RoomCode string `json:"room_code"`
}

type ToggleReadyParam struct {
	RoomCode string `json:"room_code"`
}

type GameActionParam struct {
	RoomCode string `json:"room_code"`
	Action   string `json:"action"`
	Amount   int64  `json:"amount,omitempty"`
}

type SendMessageParam struct {
	RoomCode string `json:"room_code"`
	Message  string `json:"message"`
}

func NewMessage(msgType MessageType, param interface{}) (Message, error) {
	payload, err := json.Marshal(param)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:    msgType,
		Payload: payload,
	}, nil
}

// Channel is the bidirectional event channel to the remote game engine.
// Implementations deliver inbound events and connection state changes via the
// registered callbacks and accept outbound messages via Send.
type Channel interface {
	Connect() error
	Close() error
	Send(msg Message) error
	OnEvent(fn func(event Event))
	OnConnected(fn func())
	OnDisconnected(fn func(err error))
}
