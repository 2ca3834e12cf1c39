package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/model"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want core.UrgencyLabel
	}{
		{"urgent", core.Urgent},
		{"Urgent", core.Urgent},
		{" URGENT. ", core.Urgent},
		{"'urgent'", core.Urgent},
		{"not urgent", core.NotUrgent},
		{"not_urgent", core.NotUrgent},
		{"Not Urgent.", core.NotUrgent},
		// Fail safe: never escalate on unparseable output.
		{"this email appears to be urgent because...", core.NotUrgent},
		{"maybe", core.NotUrgent},
		{"", core.NotUrgent},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLabel(tt.raw))
		})
	}
}

func TestClassify(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.AddResponse("Server Down", "urgent")
	c := NewClassifier(llm)

	label, err := c.Classify(context.Background(), core.EmailItem{
		ID:      "m1",
		From:    "alerts@example.com",
		Subject: "URGENT: Server Down",
		Body:    "Production is down.",
	})
	require.NoError(t, err)
	assert.Equal(t, core.Urgent, label)
}

func TestClassify_PromptShape(t *testing.T) {
	llm := model.NewMockModel("mock")
	c := NewClassifier(llm)

	_, err := c.Classify(context.Background(), core.EmailItem{
		From:    "jane@example.com",
		Subject: "Question",
		Body:    "A quick question.",
	})
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "FROM: jane@example.com")
	assert.Contains(t, reqs[0].Prompt, "SUBJECT: Question")
	assert.Contains(t, reqs[0].Prompt, "exactly one word")
	assert.Equal(t, systemPrompt, reqs[0].Instructions)
}

func TestClassify_ErrorDefaultsNotUrgent(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.FailWith(assert.AnError)
	c := NewClassifier(llm)

	label, err := c.Classify(context.Background(), core.EmailItem{ID: "m1"})
	assert.Error(t, err)
	assert.Equal(t, core.NotUrgent, label)
}

func TestClassify_TruncatesLongBody(t *testing.T) {
	llm := model.NewMockModel("mock")
	c := NewClassifier(llm)

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	_, err := c.Classify(context.Background(), core.EmailItem{Body: string(long)})
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Less(t, len(reqs[0].Prompt), 2500)
}
