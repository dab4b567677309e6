package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/LeventeLantos/turn-relay/internal/dice"
)

// Control identifiers carry everything the interaction handler needs:
//
//	act:<name>:<roll>
//	spl:<name>:<level>
//	end_turn
//
// Names that would push the identifier past MaxControlID bytes are cut and
// suffixed with "~" and eight hex digits of the full name's hash.
const (
	EndTurnID = "end_turn"

	actionPrefix = "act:"
	spellPrefix  = "spl:"

	hashMarker = "~"
	hashLen    = 8
)

type ControlKind string

const (
	ControlAction  ControlKind = "action"
	ControlSpell   ControlKind = "spell"
	ControlEndTurn ControlKind = "end_turn"
)

// ControlRef is a decoded control identifier.
type ControlRef struct {
	Kind  ControlKind
	Name  string
	Roll  string
	Level *int
	// Truncated reports that Name is a shortened, hashed form of the original.
	Truncated bool
}

// ActionID encodes an action control with the roll in canonical form. Rolls
// that are not valid dice notation are left out.
func ActionID(name, roll string) string {
	suffix := ""
	if n, ok := dice.Parse(roll); ok {
		suffix = n.String()
	}
	return encodeID(actionPrefix, name, suffix)
}

func SpellID(name string, level *int) string {
	suffix := ""
	if level != nil {
		suffix = strconv.Itoa(*level)
	}
	return encodeID(spellPrefix, name, suffix)
}

func encodeID(prefix, name, suffix string) string {
	name = strings.ReplaceAll(name, ":", " ")
	id := prefix + name + ":" + suffix
	if len(id) <= MaxControlID {
		return id
	}

	hash := fmt.Sprintf("%s%0*x", hashMarker, hashLen, uint32(xxhash.Sum64String(name)))
	budget := MaxControlID - len(prefix) - len(":") - len(suffix) - len(hash)
	return prefix + cutBytes(name, max(budget, 0)) + hash + ":" + suffix
}

// cutBytes returns the longest prefix of s that fits in n bytes without
// splitting a rune.
func cutBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ParseControlID decodes an identifier produced by this package.
func ParseControlID(id string) (ControlRef, bool) {
	if id == EndTurnID {
		return ControlRef{Kind: ControlEndTurn}, true
	}

	var ref ControlRef
	var rest string
	switch {
	case strings.HasPrefix(id, actionPrefix):
		ref.Kind = ControlAction
		rest = strings.TrimPrefix(id, actionPrefix)
	case strings.HasPrefix(id, spellPrefix):
		ref.Kind = ControlSpell
		rest = strings.TrimPrefix(id, spellPrefix)
	default:
		return ControlRef{}, false
	}

	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return ControlRef{}, false
	}
	ref.Name, rest = rest[:i], rest[i+1:]

	if j := len(ref.Name) - hashLen - len(hashMarker); j >= 0 && ref.Name[j:j+len(hashMarker)] == hashMarker && isHex(ref.Name[j+len(hashMarker):]) {
		ref.Truncated = true
	}

	switch ref.Kind {
	case ControlAction:
		ref.Roll = rest
	case ControlSpell:
		if rest != "" {
			lvl, err := strconv.Atoi(rest)
			if err != nil {
				return ControlRef{}, false
			}
			ref.Level = &lvl
		}
	}
	return ref, true
}

func isHex(s string) bool {
	if len(s) != hashLen {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
