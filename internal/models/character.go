package models

import "strings"

// CharacterProfile describes one side of the simulated dialogue.
// Two profiles are the same character iff their names are equal.
type CharacterProfile struct {
	Name        string `json:"name"`
	Identity    string `json:"identity"`
	Personality string `json:"personality"`
}

// Complete reports whether every field is filled in
func (p CharacterProfile) Complete() bool {
	return p.Name != "" && p.Identity != "" && p.Personality != ""
}

// ProfilePatch is a sparse update to a CharacterProfile; nil fields are left untouched
type ProfilePatch struct {
	Name        *string `json:"name,omitempty"`
	Identity    *string `json:"identity,omitempty"`
	Personality *string `json:"personality,omitempty"`
}

// Merge overlays the patch onto base, keeping base values for absent fields
func (p ProfilePatch) Merge(base CharacterProfile) CharacterProfile {
	if p.Name != nil {
		base.Name = *p.Name
	}
	if p.Identity != nil {
		base.Identity = *p.Identity
	}
	if p.Personality != nil {
		base.Personality = *p.Personality
	}
	return base
}

// Replace applies the patch over a blank profile
func (p ProfilePatch) Replace() CharacterProfile {
	return p.Merge(CharacterProfile{})
}

// Turn marks which character produces the next generated line
type Turn string

const (
	TurnA Turn = "A"
	TurnB Turn = "B"
)

// Next returns the other turn marker
func (t Turn) Next() Turn {
	if t == TurnA {
		return TurnB
	}
	return TurnA
}

// Valid reports whether t is A or B
func (t Turn) Valid() bool {
	return t == TurnA || t == TurnB
}

// ParseTurn accepts "A"/"B" in either case
func ParseTurn(s string) (Turn, bool) {
	t := Turn(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}
