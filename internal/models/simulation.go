package models

// Setup is the persisted local session: both profiles, the shared worldview and the model
type Setup struct {
	CharA     CharacterProfile `json:"charA"`
	CharB     CharacterProfile `json:"charB"`
	Worldview string           `json:"worldview"`
	Model     string           `json:"model"`
}

// Complete reports whether the setup has every field needed to start a conversation
func (s Setup) Complete() bool {
	return s.CharA.Complete() && s.CharB.Complete() && s.Worldview != "" && s.Model != ""
}

// Character returns the profile that speaks on the given turn
func (s Setup) Character(t Turn) CharacterProfile {
	if t == TurnB {
		return s.CharB
	}
	return s.CharA
}

// SimulationData is the export/import envelope. Conversation is optional so that files
// written before conversations were exported still load.
type SimulationData struct {
	Worldview    string           `json:"worldview"`
	CharA        CharacterProfile `json:"charA"`
	CharB        CharacterProfile `json:"charB"`
	Model        string           `json:"model"`
	Conversation []ChatMessage    `json:"conversation,omitempty"`
}

// Setup extracts the setup part of the envelope
func (d SimulationData) Setup() Setup {
	return Setup{
		CharA:     d.CharA,
		CharB:     d.CharB,
		Worldview: d.Worldview,
		Model:     d.Model,
	}
}

// NewSimulationData builds an envelope from a setup and an optional conversation
func NewSimulationData(s Setup, conversation []ChatMessage) SimulationData {
	return SimulationData{
		Worldview:    s.Worldview,
		CharA:        s.CharA,
		CharB:        s.CharB,
		Model:        s.Model,
		Conversation: conversation,
	}
}
