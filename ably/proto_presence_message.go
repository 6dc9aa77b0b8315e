package ably

import (
	"fmt"
)

// A PresenceAction is a kind of action involving presence in a channel.
type PresenceAction int64

const (
	PresenceActionAbsent PresenceAction = iota
	PresenceActionPresent
	PresenceActionEnter
	PresenceActionLeave
	PresenceActionUpdate
)

func (e PresenceAction) String() string {
	switch e {
	case PresenceActionAbsent:
		return "absent"
	case PresenceActionPresent:
		return "present"
	case PresenceActionEnter:
		return "enter"
	case PresenceActionLeave:
		return "leave"
	case PresenceActionUpdate:
		return "update"
	}
	return fmt.Sprintf("PresenceAction(%d)", int64(e))
}

// PresenceMessage is a member's presence state on a channel, or a change of it.
type PresenceMessage struct {
	Message
	Action PresenceAction `json:"action" codec:"action"`
}

func (m PresenceMessage) String() string {
	return fmt.Sprintf("<PresenceMessage %v clientID=%v data=%v>", m.Action, m.ClientID, m.Data)
}

func decodePresenceMessages(msgs []*PresenceMessage, cipher channelCipher) ([]*PresenceMessage, error) {
	for _, m := range msgs {
		decoded, err := m.Message.withDecodedData(cipher, nil)
		if err != nil {
			return nil, err
		}
		m.Message = decoded
	}
	return msgs, nil
}
