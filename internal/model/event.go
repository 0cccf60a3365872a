package model

import (
	"encoding/json"
	"fmt"
)

// EventName identifies a topology or request lifecycle notification.
type EventName string

const (
	EventSystemCreated    EventName = "SYSTEM_CREATED"
	EventSystemUpdated    EventName = "SYSTEM_UPDATED"
	EventSystemRemoved    EventName = "SYSTEM_REMOVED"
	EventGardenCreated    EventName = "GARDEN_CREATED"
	EventGardenUpdated    EventName = "GARDEN_UPDATED"
	EventGardenRemoved    EventName = "GARDEN_REMOVED"
	EventGardenStarted    EventName = "GARDEN_STARTED"
	EventGardenStopped    EventName = "GARDEN_STOPPED"
	EventGardenSync       EventName = "GARDEN_SYNC"
	EventRequestCompleted EventName = "REQUEST_COMPLETED"
)

// Event is a notification raised by a garden. Garden names the origin.
type Event struct {
	Name    EventName
	Garden  string
	Payload any
}

type eventWire struct {
	Name        EventName       `json:"name"`
	Garden      string          `json:"garden"`
	PayloadType string          `json:"payload_type,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	wire := eventWire{Name: e.Name, Garden: e.Garden}
	if e.Payload != nil {
		payloadType, err := modelTypeOf(e.Payload)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		wire.PayloadType = payloadType
		wire.Payload = raw
	}
	return json.Marshal(wire)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := Event{Name: wire.Name, Garden: wire.Garden}
	if len(wire.Payload) > 0 && string(wire.Payload) != "null" {
		payload, err := decodeModel(wire.PayloadType, wire.Payload)
		if err != nil {
			return fmt.Errorf("model: event %s: %w", wire.Name, err)
		}
		out.Payload = payload
	}
	*e = out
	return nil
}

// SystemPayload returns the event payload as a System.
func (e Event) SystemPayload() (*System, bool) {
	switch p := e.Payload.(type) {
	case *System:
		return p, p != nil
	case System:
		return &p, true
	default:
		return nil, false
	}
}

// GardenPayload returns the event payload as a Garden.
func (e Event) GardenPayload() (*Garden, bool) {
	switch p := e.Payload.(type) {
	case *Garden:
		return p, p != nil
	case Garden:
		return &p, true
	default:
		return nil, false
	}
}

// RequestPayload returns the event payload as a Request.
func (e Event) RequestPayload() (*Request, bool) {
	switch p := e.Payload.(type) {
	case *Request:
		return p, p != nil
	case Request:
		return &p, true
	default:
		return nil, false
	}
}
