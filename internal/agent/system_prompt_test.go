package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPromptMedium(t *testing.T) {
	assert.Contains(t, BuildSystemPrompt(PromptConfig{ChannelID: "telegram"}), "texting on Telegram")
	assert.Contains(t, BuildSystemPrompt(PromptConfig{ChannelID: "irc"}), "texting on IRC")
	assert.Contains(t, BuildSystemPrompt(PromptConfig{}), "texting on Telegram")
}

func TestBuildSystemPromptNameAndExtra(t *testing.T) {
	p := BuildSystemPrompt(PromptConfig{AgentName: "Cupid", ExtraPrompt: "Answer in French."})
	assert.Contains(t, p, "Your name is Cupid.")
	assert.True(t, strings.HasSuffix(p, "Answer in French.\n"))
}

func TestBuildSystemPromptHasNoFormatVerbs(t *testing.T) {
	assert.NotContains(t, BuildSystemPrompt(PromptConfig{}), "%!")
}
