package gemini

import (
	"errors"
	"testing"

	"github.com/cschleiden/go-approvals/llm"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func Test_Classify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{name: "rate limited", err: genai.APIError{Code: 429, Message: "quota"}, wantTransient: true},
		{name: "overloaded", err: genai.APIError{Code: 503, Message: "overloaded"}, wantTransient: true},
		{name: "bad request", err: genai.APIError{Code: 400, Message: "bad"}, wantTransient: false},
		{name: "other error", err: errors.New("dial tcp"), wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			require.Equal(t, tt.wantTransient, llm.IsTransient(err))
			require.Contains(t, err.Error(), tt.err.Error())
		})
	}
}

func Test_ResponseText(t *testing.T) {
	require.Empty(t, responseText(nil))
	require.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{Text: "thinking", Thought: true},
					{Text: `{"risk_level":`},
					{Text: ` "low"}`},
				},
			},
		}},
	}
	require.Equal(t, `{"risk_level": "low"}`, responseText(resp))
}
