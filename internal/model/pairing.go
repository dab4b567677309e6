package model

import "time"

type PairingStatus string

const (
	PairingPending      PairingStatus = "pending"
	PairingConnected    PairingStatus = "connected"
	PairingDisconnected PairingStatus = "disconnected"
)

// Destination is where turn notifications for a pairing are posted.
type Destination struct {
	ChannelID string `json:"channelId"`
	GuildID   string `json:"guildId,omitempty"`
}

type Pairing struct {
	ID             string        `json:"id"`
	Code           string        `json:"code"`
	ClientIdentity string        `json:"clientIdentity"`
	Destination    Destination   `json:"destination"`
	Status         PairingStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	ConnectedAt    *time.Time    `json:"connectedAt,omitempty"`
}

func (p *Pairing) HasDestination() bool {
	return p != nil && p.Destination.ChannelID != ""
}
