package client

import "github.com/LeventeLantos/turn-relay/internal/render"

const (
	componentActionRow = 1
	componentButton    = 2
)

var colorValues = map[render.Color]int{
	render.ColorTurn:    0x2ECC71,
	render.ColorNeutral: 0x95A5A6,
	render.ColorRound:   0x3498DB,
	render.ColorCombat:  0xE74C3C,
	render.ColorInfo:    0x9B59B6,
}

var styleValues = map[render.Style]int{
	render.StylePrimary:   1,
	render.StyleSecondary: 2,
	render.StyleSuccess:   3,
}

type createMessage struct {
	Embeds     []embed     `json:"embeds"`
	Components []component `json:"components,omitempty"`
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
}

type component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Emoji      *emoji      `json:"emoji,omitempty"`
	Components []component `json:"components,omitempty"`
}

type emoji struct {
	Name string `json:"name"`
}

func toCreateMessage(m render.Message) createMessage {
	color, ok := colorValues[m.Color]
	if !ok {
		color = colorValues[render.ColorNeutral]
	}

	out := createMessage{
		Embeds: []embed{{
			Title:       m.Title,
			Description: m.Body,
			Color:       color,
		}},
	}

	for _, g := range m.Groups {
		if len(g) == 0 {
			continue
		}
		row := component{Type: componentActionRow}
		for _, ctl := range g {
			style, ok := styleValues[ctl.Style]
			if !ok {
				style = styleValues[render.StyleSecondary]
			}
			b := component{
				Type:     componentButton,
				Style:    style,
				Label:    ctl.Label,
				CustomID: ctl.ID,
			}
			if ctl.Icon != "" {
				b.Emoji = &emoji{Name: ctl.Icon}
			}
			row.Components = append(row.Components, b)
		}
		out.Components = append(out.Components, row)
	}
	return out
}
