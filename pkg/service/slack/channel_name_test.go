package slack_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/service/slack"
)

func TestNormalizeChannelName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "hash prefix stripped",
			input: "#alerts",
			want:  "alerts",
		},
		{
			name:  "basic pattern",
			input: "Support Alerts",
			want:  "support-alerts",
		},
		{
			name:  "uppercase conversion",
			input: "UPPERCASE",
			want:  "uppercase",
		},
		{
			name:  "Japanese preserved",
			input: "焼きそばパン売り切れ",
			want:  "焼きそばパン売り切れ",
		},
		{
			name:  "symbols removed",
			input: "ops!@$%alerts",
			want:  "opsalerts",
		},
		{
			name:  "allowed characters preserved",
			input: "cs-alerts_123",
			want:  "cs-alerts_123",
		},
		{
			name:  "Japanese punctuation removed",
			input: "焼きそばパン、売り切れ。",
			want:  "焼きそばパン売り切れ",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slack.NormalizeChannelName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeChannelName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsChannelID(t *testing.T) {
	gt.Value(t, slack.IsChannelID("C024BE91L")).Equal(true)
	gt.Value(t, slack.IsChannelID("G0123456789")).Equal(true)
	gt.Value(t, slack.IsChannelID("#C024BE91L")).Equal(false)
	gt.Value(t, slack.IsChannelID("customer-alerts")).Equal(false)
	gt.Value(t, slack.IsChannelID("Cshort")).Equal(false)
	gt.Value(t, slack.IsChannelID("CUSTOMERSUPPORTx")).Equal(false)
}
