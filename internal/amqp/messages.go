package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"financeiro/internal/services"
)

// RoutingKeyChanged is the routing key of every change notification.
const RoutingKeyChanged = "record.changed"

// ChangeMessage announces that a collection was written. It carries no
// record data; consumers reread the store.
type ChangeMessage struct {
	Kind      string    `json:"kind"`
	Op        string    `json:"op"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(c services.Change) *ChangeMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		Kind:      string(c.Kind),
		Op:        string(c.Op),
		ID:        c.ID,
		Timestamp: ts.UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects ones without kind or op.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" || msg.Op == "" {
		return nil, fmt.Errorf("change message missing kind or op")
	}
	return &msg, nil
}

// Change converts the message back into a store change.
func (m *ChangeMessage) Change() services.Change {
	return services.Change{
		Kind: services.ChangeKind(m.Kind),
		Op:   services.ChangeOp(m.Op),
		ID:   m.ID,
		At:   m.Timestamp,
	}
}
