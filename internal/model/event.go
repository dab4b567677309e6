package model

import (
	"encoding/json"
	"errors"
)

const (
	EventTurnStart   = "turn_start"
	EventTurnEnd     = "turn_end"
	EventRoundChange = "round_change"
	EventCombatStart = "combat_start"
)

// TurnEvent is the sealed set of turn notifications a client can queue.
type TurnEvent interface {
	EventType() string
	isTurnEvent()
}

func (TurnStart) isTurnEvent()    {}
func (TurnEnd) isTurnEvent()      {}
func (RoundChange) isTurnEvent()  {}
func (CombatStart) isTurnEvent()  {}
func (UnknownEvent) isTurnEvent() {}

type ActionKind string

const (
	ActionKindAction ActionKind = "action"
	ActionKindSpell  ActionKind = "spell"
)

type AvailableAction struct {
	Name    string     `json:"name"`
	Kind    ActionKind `json:"type"`
	Roll    string     `json:"roll,omitempty"`
	Level   *int       `json:"level,omitempty"`
	Builtin bool       `json:"builtin,omitempty"`
}

// ActionEconomy flags which parts of a turn are still unspent.
type ActionEconomy struct {
	Action   bool `json:"has_action"`
	Bonus    bool `json:"has_bonus_action"`
	Movement bool `json:"has_movement"`
	Reaction bool `json:"has_reaction"`
}

type TurnStart struct {
	ActorName  string `json:"actor_name"`
	Round      *int   `json:"round,omitempty"`
	Initiative *int   `json:"initiative,omitempty"`
	ActionEconomy
	AvailableActions []AvailableAction `json:"available_actions,omitempty"`
}

type TurnEnd struct {
	ActorName string `json:"actor_name"`
}

type RoundChange struct {
	Round        int    `json:"round"`
	CurrentActor string `json:"current_actor,omitempty"`
}

type CombatStart struct {
	FirstActor string `json:"first_actor,omitempty"`
}

// UnknownEvent carries any tag this relay does not know how to render, or a
// known tag whose payload could not be decoded.
type UnknownEvent struct {
	Tag       string `json:"-"`
	ActorName string `json:"actor_name,omitempty"`
}

func (TurnStart) EventType() string      { return EventTurnStart }
func (TurnEnd) EventType() string        { return EventTurnEnd }
func (RoundChange) EventType() string    { return EventRoundChange }
func (CombatStart) EventType() string    { return EventCombatStart }
func (e UnknownEvent) EventType() string { return e.Tag }

// ParseTurnEvent decodes a queued payload into its variant. It never fails:
// an unrecognised tag or an undecodable payload yields an UnknownEvent so the
// relay always has something to render.
func ParseTurnEvent(tag string, payload json.RawMessage) TurnEvent {
	var (
		ev  TurnEvent
		err error
	)
	switch tag {
	case EventTurnStart:
		var e TurnStart
		err = decodePayload(payload, &e)
		ev = e
	case EventTurnEnd:
		var e TurnEnd
		err = decodePayload(payload, &e)
		ev = e
	case EventRoundChange:
		var e RoundChange
		err = decodePayload(payload, &e)
		ev = e
	case EventCombatStart:
		var e CombatStart
		err = decodePayload(payload, &e)
		ev = e
	default:
		err = errUnknownTag
	}
	if err == nil {
		return ev
	}

	unknown := UnknownEvent{Tag: tag}
	_ = decodePayload(payload, &unknown)
	return unknown
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}

var errUnknownTag = errors.New("unknown event tag")
