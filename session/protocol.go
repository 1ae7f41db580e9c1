package session

import "encoding/json"

// Event names on the real-time boundary.
const (
	EventJoinRoom      = "joinRoom"
	EventChatMessage   = "chatMessage"
	EventSystemMessage = "systemMessage"
)

// Envelope is the JSON frame exchanged on the websocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatPayload is the outbound chatMessage body.
type ChatPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func newEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}
