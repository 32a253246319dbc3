package ai

import (
	"fmt"

	"ai-character-chat-simulator/backend/internal/models"
)

// BuildInstruction renders the persona instruction for the character speaking on turn t.
// The instruction pins the shared worldview, the character's identity and personality,
// and asks for bare dialogue without the speaker's name or any markup.
func BuildInstruction(setup models.Setup, t models.Turn) string {
	self := setup.Character(t)
	other := setup.Character(t.Next())

	common := fmt.Sprintf("這是對話的背景設定（世界觀）：「%s」。請嚴格遵守此設定。", setup.Worldview)

	return fmt.Sprintf(
		"%s 你是 %s。你的身份是：「%s」。你的人格是：「%s」。你正在和 %s 對話。你的回覆必須只包含你的對話，不要有你的名字或任何格式。",
		common,
		self.Name,
		self.Identity,
		self.Personality,
		other.Name,
	)
}
