package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Resources that emit change events.
const (
	ResourceCategory = "category"
	ResourceEntry    = "entry"
	ResourceVehicle  = "vehicle"
)

// Actions carried by change events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ChangeMessage announces a committed ledger mutation. It carries only
// identifiers; consumers load the current record from storage.
type ChangeMessage struct {
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage stamps a change with the current time.
func NewChangeMessage(resource, action, id, owner string) *ChangeMessage {
	return &ChangeMessage{
		Resource:  resource,
		Action:    action,
		ID:        id,
		Owner:     owner,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ChangeMessage) Validate() error {
	switch m.Resource {
	case ResourceCategory, ResourceEntry, ResourceVehicle:
	default:
		return fmt.Errorf("unknown resource %q", m.Resource)
	}
	switch m.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	if m.ID == "" || m.Owner == "" {
		return fmt.Errorf("change message requires id and owner")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
