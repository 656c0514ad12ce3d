package model

import (
	"encoding/json"
	"fmt"
)

// EventType identifies the type of event
type EventType string

const (
	EventPlayerUpdated           EventType = "PlayerUpdated"
	EventPlayerDeleted           EventType = "PlayerDeleted"
	EventPlayerActivated         EventType = "PlayerActivated"
	EventPlayerGearChoiceUpdated EventType = "PlayerGearChoiceUpdated"
	EventRosterUpdated           EventType = "RosterUpdated"
)

// Event is a change notification published on a roster's topic.
// The set of implementations is closed; see the types below.
type Event interface {
	Type() EventType
	Topic() RosterSlug
	isEvent()
}

// PlayerUpdated carries the canonical player after an edit
type PlayerUpdated struct {
	Player Player `json:"player"`
}

func (PlayerUpdated) Type() EventType     { return EventPlayerUpdated }
func (e PlayerUpdated) Topic() RosterSlug { return e.Player.RosterSlug }
func (PlayerUpdated) isEvent()            {}

// PlayerDeleted is published after a soft delete
type PlayerDeleted struct {
	RosterSlug RosterSlug `json:"rosterSlug"`
	Player     Player     `json:"player"`
}

func (PlayerDeleted) Type() EventType     { return EventPlayerDeleted }
func (e PlayerDeleted) Topic() RosterSlug { return e.RosterSlug }
func (PlayerDeleted) isEvent()            {}

// PlayerActivated is published after a soft-deleted player is restored
type PlayerActivated struct {
	RosterSlug RosterSlug `json:"rosterSlug"`
	Player     Player     `json:"player"`
}

func (PlayerActivated) Type() EventType     { return EventPlayerActivated }
func (e PlayerActivated) Topic() RosterSlug { return e.RosterSlug }
func (PlayerActivated) isEvent()            {}

// PlayerGearChoiceUpdated carries the canonical gear choice after an edit
type PlayerGearChoiceUpdated struct {
	GearChoice GearChoice `json:"gearChoice"`
}

func (PlayerGearChoiceUpdated) Type() EventType     { return EventPlayerGearChoiceUpdated }
func (e PlayerGearChoiceUpdated) Topic() RosterSlug { return e.GearChoice.RosterSlug }
func (PlayerGearChoiceUpdated) isEvent()            {}

// RosterUpdated signals that roster membership or roster details changed
type RosterUpdated struct {
	Roster Roster `json:"roster"`
}

func (RosterUpdated) Type() EventType     { return EventRosterUpdated }
func (e RosterUpdated) Topic() RosterSlug { return e.Roster.Slug }
func (RosterUpdated) isEvent()            {}

// Envelope is the wire form of an event: {"type": ..., "payload": {...}}
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent marshals an event into its envelope JSON
func EncodeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type(), err)
	}
	return json.Marshal(Envelope{Type: e.Type(), Payload: payload})
}

// DecodeEvent parses envelope JSON back into a concrete event
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env.Event()
}

// Event decodes the payload according to the envelope type
func (env Envelope) Event() (Event, error) {
	var (
		e   Event
		err error
	)
	switch env.Type {
	case EventPlayerUpdated:
		var v PlayerUpdated
		err = json.Unmarshal(env.Payload, &v)
		e = v
	case EventPlayerDeleted:
		var v PlayerDeleted
		err = json.Unmarshal(env.Payload, &v)
		e = v
	case EventPlayerActivated:
		var v PlayerActivated
		err = json.Unmarshal(env.Payload, &v)
		e = v
	case EventPlayerGearChoiceUpdated:
		var v PlayerGearChoiceUpdated
		err = json.Unmarshal(env.Payload, &v)
		e = v
	case EventRosterUpdated:
		var v RosterUpdated
		err = json.Unmarshal(env.Payload, &v)
		e = v
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return e, nil
}
