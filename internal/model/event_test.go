package model

import (
	"encoding/json"
	"testing"
)

func TestParseTurnEvent_TurnStart(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"actor_name": "Vex",
		"round": 2,
		"has_action": true,
		"has_bonus_action": false,
		"has_movement": true,
		"has_reaction": true,
		"available_actions": [
			{"name": "Longsword", "type": "action", "roll": "1d8+3"},
			{"name": "Fire Bolt", "type": "spell", "level": 0}
		]
	}`)

	ev := ParseTurnEvent(EventTurnStart, payload)
	ts, ok := ev.(TurnStart)
	if !ok {
		t.Fatalf("expected TurnStart, got %T", ev)
	}
	if ts.ActorName != "Vex" {
		t.Fatalf("expected actor %q, got %q", "Vex", ts.ActorName)
	}
	if ts.Round == nil || *ts.Round != 2 {
		t.Fatalf("expected round 2, got %v", ts.Round)
	}
	if ts.Initiative != nil {
		t.Fatalf("expected nil initiative, got %v", *ts.Initiative)
	}
	if !ts.Action || ts.Bonus || !ts.Movement || !ts.Reaction {
		t.Fatalf("unexpected action economy: %+v", ts.ActionEconomy)
	}
	if len(ts.AvailableActions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(ts.AvailableActions))
	}
	if ts.AvailableActions[1].Kind != ActionKindSpell || ts.AvailableActions[1].Level == nil {
		t.Fatalf("unexpected spell entry: %+v", ts.AvailableActions[1])
	}
}

func TestParseTurnEvent_UnknownTag(t *testing.T) {
	t.Parallel()

	ev := ParseTurnEvent("hp_change", json.RawMessage(`{"actor_name":"Brom"}`))
	u, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("expected UnknownEvent, got %T", ev)
	}
	if u.Tag != "hp_change" || u.EventType() != "hp_change" {
		t.Fatalf("unexpected tag: %q", u.Tag)
	}
	if u.ActorName != "Brom" {
		t.Fatalf("expected actor %q, got %q", "Brom", u.ActorName)
	}
}

func TestParseTurnEvent_MalformedPayloadFallsBack(t *testing.T) {
	t.Parallel()

	ev := ParseTurnEvent(EventRoundChange, json.RawMessage(`{"round":"three"}`))
	if _, ok := ev.(UnknownEvent); !ok {
		t.Fatalf("expected UnknownEvent for malformed payload, got %T", ev)
	}
	if ev.EventType() != EventRoundChange {
		t.Fatalf("expected tag to be preserved, got %q", ev.EventType())
	}
}

func TestParseTurnEvent_EmptyPayload(t *testing.T) {
	t.Parallel()

	ev := ParseTurnEvent(EventCombatStart, nil)
	cs, ok := ev.(CombatStart)
	if !ok {
		t.Fatalf("expected CombatStart, got %T", ev)
	}
	if cs.FirstActor != "" {
		t.Fatalf("expected empty first actor, got %q", cs.FirstActor)
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{Posted, Delivered, Failed} {
		if !s.Terminal() {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	for _, s := range []Status{Pending, Processing} {
		if s.Terminal() {
			t.Fatalf("expected %q to be non-terminal", s)
		}
	}
}
