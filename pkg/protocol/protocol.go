package protocol

import (
	"encoding/json"
	"fmt"
)

type MessageType string

// Client -> server.
const (
	MsgAuthenticate MessageType = "AUTHENTICATE"
	MsgJoinQueue    MessageType = "JOIN_QUEUE"
	MsgLeaveQueue   MessageType = "LEAVE_QUEUE"
	MsgSubmitCode   MessageType = "SUBMIT_CODE"
	MsgLeaveDuel    MessageType = "LEAVE_DUEL"
	MsgChatMessage  MessageType = "CHAT_MESSAGE"
)

// Server -> client.
const (
	MsgAuthSuccess       MessageType = "AUTH_SUCCESS"
	MsgAuthError         MessageType = "AUTH_ERROR"
	MsgQueueJoined       MessageType = "QUEUE_JOINED"
	MsgQueueLeft         MessageType = "QUEUE_LEFT"
	MsgDuelStart         MessageType = "DUEL_START"
	MsgDuelState         MessageType = "DUEL_STATE"
	MsgSubmissionResult  MessageType = "SUBMISSION_RESULT"
	MsgSubmissionError   MessageType = "SUBMISSION_ERROR"
	MsgOpponentCompleted MessageType = "OPPONENT_COMPLETED"
	MsgDuelEnd           MessageType = "DUEL_END"
	MsgDuelForfeited     MessageType = "DUEL_FORFEITED"
	MsgError             MessageType = "ERROR"
)

// Message is the wire envelope for every frame in both directions. Payload
// stays raw until the dispatcher knows the concrete type.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message envelope: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message type is required")
	}
	return &msg, nil
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	msg := &Message{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		msg.Payload = data
	}
	return msg, nil
}

func NewErrorMessage(message string) (*Message, error) {
	return NewMessage(MsgError, ErrorPayload{Message: message})
}

func (m *Message) ToBytes() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Message) DecodePayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
