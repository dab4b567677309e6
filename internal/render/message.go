// Package render turns queued turn events into chat messages with
// interactive controls, bounded by the chat platform's limits.
package render

const (
	MaxControlsPerGroup = 5
	MaxGroups           = 5

	MaxTitleRunes = 256
	MaxBodyRunes  = 4096
	MaxLabelRunes = 80
	MaxControlID  = 100

	maxActionControls = 3
	maxSpellControls  = 2
)

type Color string

const (
	ColorTurn    Color = "turn"
	ColorNeutral Color = "neutral"
	ColorRound   Color = "round"
	ColorCombat  Color = "combat"
	ColorInfo    Color = "info"
)

type Style string

const (
	StylePrimary   Style = "primary"
	StyleSuccess   Style = "success"
	StyleSecondary Style = "secondary"
)

// Message is rebuilt from the event on every delivery attempt and never stored.
type Message struct {
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Color  Color          `json:"color"`
	Groups []ControlGroup `json:"groups,omitempty"`
}

// ControlGroup is one row of at most MaxControlsPerGroup controls.
type ControlGroup []Control

type Control struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Style Style  `json:"style"`
	Icon  string `json:"icon,omitempty"`
}

func (m Message) ControlCount() int {
	n := 0
	for _, g := range m.Groups {
		n += len(g)
	}
	return n
}
