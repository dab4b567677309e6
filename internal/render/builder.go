package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

const (
	iconAction  = "⚔️"
	iconSpell   = "✨"
	iconEndTurn = "⏭️"

	endTurnLabel = "End Turn"
)

// Render builds the chat message for a turn event. It is total: every event,
// including unknown tags, produces a message with a title.
func Render(ev model.TurnEvent) Message {
	var m Message
	switch e := ev.(type) {
	case model.TurnStart:
		m = renderTurnStart(e)
	case model.TurnEnd:
		m = Message{
			Title: fmt.Sprintf("%s ended their turn", actorOr(e.ActorName, "Someone")),
			Color: ColorNeutral,
		}
	case model.RoundChange:
		m = Message{
			Title: fmt.Sprintf("🔄 Round %d", e.Round),
			Body:  "A new round begins.",
			Color: ColorRound,
		}
		if e.CurrentActor != "" {
			m.Body = fmt.Sprintf("It's **%s**'s turn.", e.CurrentActor)
		}
	case model.CombatStart:
		m = Message{
			Title: "⚔️ Combat Started!",
			Body:  "Roll for initiative!",
			Color: ColorCombat,
		}
		if e.FirstActor != "" {
			m.Body = fmt.Sprintf("**%s** goes first.", e.FirstActor)
		}
	case model.UnknownEvent:
		m = Message{
			Title: actorOr(e.ActorName, "Game Update"),
			Body:  e.Tag,
			Color: ColorInfo,
		}
	default:
		m = Message{Title: "Game Update", Color: ColorInfo}
		if ev != nil {
			m.Body = ev.EventType()
		}
	}

	m.Title = truncateRunes(m.Title, MaxTitleRunes)
	m.Body = truncateRunes(m.Body, MaxBodyRunes)
	return m
}

func renderTurnStart(e model.TurnStart) Message {
	var b strings.Builder
	b.WriteString(flagLine(e.Action, "Action"))
	b.WriteString(flagLine(e.Bonus, "Bonus Action"))
	b.WriteString(flagLine(e.Movement, "Movement"))
	b.WriteString(flagLine(e.Reaction, "Reaction"))
	if e.Round != nil {
		fmt.Fprintf(&b, "\n**Round:** %d", *e.Round)
	}
	if e.Initiative != nil {
		fmt.Fprintf(&b, "\n**Initiative:** %d", *e.Initiative)
	}

	return Message{
		Title:  fmt.Sprintf("⚔️ %s's Turn", actorOr(e.ActorName, "Unknown")),
		Body:   strings.TrimRight(b.String(), "\n"),
		Color:  ColorTurn,
		Groups: turnControls(e.AvailableActions),
	}
}

// turnControls packs up to three actions and two spells into rows of five and
// always finishes with an End Turn row. Entries that would need a sixth row
// are dropped.
func turnControls(actions []model.AvailableAction) []ControlGroup {
	endTurn := ControlGroup{{
		ID:    EndTurnID,
		Label: endTurnLabel,
		Style: StyleSecondary,
		Icon:  iconEndTurn,
	}}
	if len(actions) == 0 {
		return []ControlGroup{endTurn}
	}

	var controls []Control
	nActions := 0
	for _, a := range actions {
		if nActions == maxActionControls {
			break
		}
		if a.Kind != model.ActionKindAction || a.Builtin {
			continue
		}
		controls = append(controls, Control{
			ID:    ActionID(a.Name, a.Roll),
			Label: truncateRunes(a.Name, MaxLabelRunes),
			Style: StylePrimary,
			Icon:  iconAction,
		})
		nActions++
	}

	nSpells := 0
	for _, a := range actions {
		if nSpells == maxSpellControls {
			break
		}
		if a.Kind != model.ActionKindSpell {
			continue
		}
		controls = append(controls, Control{
			ID:    SpellID(a.Name, a.Level),
			Label: truncateRunes(a.Name, MaxLabelRunes),
			Style: StyleSuccess,
			Icon:  iconSpell,
		})
		nSpells++
	}

	var groups []ControlGroup
	for len(controls) > 0 && len(groups) < MaxGroups-1 {
		n := min(len(controls), MaxControlsPerGroup)
		groups = append(groups, ControlGroup(controls[:n]))
		controls = controls[n:]
	}
	return append(groups, endTurn)
}

func flagLine(ok bool, label string) string {
	if ok {
		return "✅ " + label + "\n"
	}
	return "❌ " + label + "\n"
}

func actorOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
