package model

const CommandRollHere = "roll_here"

type ComputedRoll struct {
	Count    int `json:"count"`
	Sides    int `json:"sides"`
	Modifier int `json:"modifier"`
}

// CommandEvent is the payload of a command row consumed by the remote client.
type CommandEvent struct {
	CommandKind string       `json:"command_kind"`
	RollString  string       `json:"roll_string"`
	Computed    ComputedRoll `json:"computed"`
	DisplayName string       `json:"display_name"`
	ActorName   string       `json:"actor_name"`
	CheckType   *string      `json:"check_type"`
}
