package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"wattson/internal/model"
)

func TestIsWorkoutRequest(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Donne-moi un échauffement pour demain", true},
		{"donne-moi un ECHAUFFEMENT complet", true},
		{"quel bloc principal pour ma séance", true},
		{"et le retour au calme ?", true},
		{"fais-moi 8 x 400m", true},
		{"10x30 secondes à fond", true},
		{"comment mieux dormir avant une course", false},
		{"des idées pour organiser ma semaine", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWorkoutRequest(tt.in))
		})
	}
}

func TestBuildSystemPromptBase(t *testing.T) {
	prompt := BuildSystemPrompt(nil, "")

	assert.Contains(t, prompt, `"Wattson"`)
	assert.Contains(t, prompt, "triathlètes amateurs")
	assert.Contains(t, prompt, "NE JAMAIS fournir de plans")
	assert.NotContains(t, prompt, "Contexte athlète")
	assert.NotContains(t, prompt, "CONTEXTE:")
}

func TestBuildSystemPromptWithProfile(t *testing.T) {
	profile := map[string]string{
		"objectif": "70.3 en juin",
		"enfants":  "2",
	}
	prompt := BuildSystemPrompt(profile, "")

	// Sorted keys give a stable prompt.
	assert.Contains(t, prompt, "Contexte athlète: enfants=2, objectif=70.3 en juin.")
}

func TestBuildSystemPromptWithContext(t *testing.T) {
	prompt := BuildSystemPrompt(nil, "【plan.pdf · #0 · 0.900】\nextrait")

	assert.Contains(t, prompt, "Réponds STRICTEMENT à partir du CONTEXTE fourni.")
	assert.Contains(t, prompt, "CONTEXTE:\n【plan.pdf · #0 · 0.900】\nextrait")
}

func TestBuildSystemPromptBlankContextOmitted(t *testing.T) {
	prompt := BuildSystemPrompt(nil, "   \n ")
	assert.NotContains(t, prompt, "CONTEXTE:")
}

func TestComposeMessagesNoHistory(t *testing.T) {
	msgs := composeMessages(nil, "ma question")
	assert.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "ma question", msgs[0].Content)
}

func TestComposeMessagesMapsAssistantToModel(t *testing.T) {
	history := []model.ChatMessage{
		{Role: "user", Content: "bonjour"},
		{Role: "assistant", Content: "salut !"},
	}
	msgs := composeMessages(history, "et ensuite ?")
	assert.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "model", msgs[1].Role)
	assert.Equal(t, "salut !", msgs[1].Content)
	assert.Equal(t, "et ensuite ?", msgs[2].Content)
}

func TestWorkoutRedirectMentionsCoach(t *testing.T) {
	assert.True(t, strings.Contains(workoutRedirect, "Coach"))
}
