package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
)

var sentimentEmoji = map[string]string{
	"positive":   "😊",
	"neutral":    "😐",
	"negative":   "😠",
	"frustrated": "😤",
	"angry":      "🔴",
	"happy":      "😃",
	"confused":   "😕",
	"satisfied":  "✅",
}

// SentimentEmoji returns the emoji for a sentiment label, "❓" when unknown
func SentimentEmoji(sentiment string) string {
	if e, ok := sentimentEmoji[strings.ToLower(sentiment)]; ok {
		return e
	}
	return "❓"
}

func topicsLine(p *model.AlertPayload) string {
	return strings.Join(p.KeyTopics, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func contactLine(p *model.AlertPayload) string {
	if p.ContactPhone == "" {
		return p.ContactName
	}
	return fmt.Sprintf("%s (%s)", p.ContactName, p.ContactPhone)
}

// FormatPlain renders the alert as plain text, used for email text bodies
// and CRM notes
func FormatPlain(p *model.AlertPayload) string {
	lines := []string{
		"Semantic Alert: " + p.RuleName,
		"Agent: " + p.AgentName,
		fmt.Sprintf("Sentiment: %s %s", SentimentEmoji(p.Sentiment), p.Sentiment),
		"Topics: " + topicsLine(p),
		fmt.Sprintf("Pattern matches: %d", p.MatchCount),
		"Triggering summary: " + p.Summary,
		"Contact: " + contactLine(p),
	}
	if c := p.RecentCall; c != nil && c.Summary != "" {
		lines = append(lines, "", "--- Most Recent Call ---",
			fmt.Sprintf("%s (%ds): %s", c.StartedAt.UTC().Format("2006-01-02 15:04 MST"), c.DurationSeconds, truncate(c.Summary, 150)))
	}
	return strings.Join(lines, "\n")
}

// FormatSMS renders a compact body sized for a few SMS segments
func FormatSMS(p *model.AlertPayload) string {
	lines := []string{
		"🔔 Semantic Alert: " + p.RuleName,
		fmt.Sprintf("%s Sentiment: %s", SentimentEmoji(p.Sentiment), p.Sentiment),
		"🏷️ Topics: " + topicsLine(p),
		fmt.Sprintf("📊 %d pattern matches", p.MatchCount),
		"💬 " + truncate(p.Summary, 100),
	}
	return strings.Join(lines, "\n")
}

// FormatSlack renders Slack mrkdwn
func FormatSlack(p *model.AlertPayload) string {
	lines := []string{
		fmt.Sprintf("🔔 *Semantic Alert: %s*", p.RuleName),
		"🤖 *Agent:* " + p.AgentName,
		fmt.Sprintf("%s *Sentiment:* %s", SentimentEmoji(p.Sentiment), p.Sentiment),
		"🏷️ *Topics:* " + topicsLine(p),
		fmt.Sprintf("📊 *Pattern matches:* %d", p.MatchCount),
		"💬 *Trigger:* " + p.Summary,
		"👤 *Contact:* " + contactLine(p),
	}
	if c := p.RecentCall; c != nil && c.Summary != "" {
		lines = append(lines, "", "📞 *Most recent call:*", "_"+truncate(c.Summary, 120)+"_")
	}
	return strings.Join(lines, "\n")
}

// EmailSubject renders the configured subject template against the payload,
// falling back to a default subject when none is set
func EmailSubject(cfg *model.EmailConfig, p *model.AlertPayload) (string, error) {
	if cfg == nil || strings.TrimSpace(cfg.SubjectTemplate) == "" {
		return fmt.Sprintf("%s Semantic Alert: %s — %s", SentimentEmoji(p.Sentiment), p.RuleName, p.AgentName), nil
	}

	tmpl, err := texttemplate.New("subject").Option("missingkey=zero").Parse(cfg.SubjectTemplate)
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse subject template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", goerr.Wrap(err, "failed to render subject template")
	}
	// header injection guard
	return strings.Join(strings.Fields(buf.String()), " "), nil
}

var emailHTML = template.Must(template.New("email").Funcs(template.FuncMap{
	"emoji":  SentimentEmoji,
	"topics": topicsLine,
}).Parse(`<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto;">
  <div style="background: #fef3c7; border-left: 4px solid #f59e0b; padding: 1rem; margin-bottom: 1.5rem;">
    <h2 style="margin: 0 0 0.25rem; color: #92400e;">🔔 Semantic Alert: {{.RuleName}}</h2>
    <p style="margin: 0; color: #a16207;">Recurring pattern detected across {{.MatchCount}} conversations</p>
  </div>
  <table style="width: 100%; margin-bottom: 1.5rem;">
    <tr><td><strong>🤖 Agent:</strong></td><td>{{.AgentName}}</td></tr>
    <tr><td><strong>{{emoji .Sentiment}} Sentiment:</strong></td><td>{{.Sentiment}}</td></tr>
    <tr><td><strong>🏷️ Topics:</strong></td><td>{{topics .}}</td></tr>
    <tr><td><strong>💬 Trigger:</strong></td><td>{{.Summary}}</td></tr>
    <tr><td><strong>👤 Contact:</strong></td><td>{{.ContactName}}{{if .ContactPhone}} ({{.ContactPhone}}){{end}}</td></tr>
  </table>
  {{- with .RecentCall}}{{if .Summary}}
  <h3 style="margin: 0 0 0.75rem; color: #374151;">📞 Most Recent Call</h3>
  <p style="font-size: 0.85rem;">{{.Summary}}</p>
  {{- end}}{{end}}
  <p style="margin-top: 2rem; padding-top: 1rem; border-top: 1px solid #e5e7eb; color: #9ca3af; font-size: 0.75rem;">
    This alert was triggered by a semantic pattern match in your agent's conversations.
  </p>
</div>`))

// FormatEmailHTML renders the HTML email body. Payload values are escaped.
func FormatEmailHTML(p *model.AlertPayload) (string, error) {
	var buf bytes.Buffer
	if err := emailHTML.Execute(&buf, p); err != nil {
		return "", goerr.Wrap(err, "failed to render email body")
	}
	return buf.String(), nil
}
