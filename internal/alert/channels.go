package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
)

const queryTimestampFormat = "2006-01-02 15:04:05"

// Channel is one alert destination. Send never panics; a transport or
// formatting failure is reported via its bool return, the same
// degrade-to-false contract the orchestrator relies on when fanning
// out across channels.
type Channel interface {
	Name() string
	Send(payload AlertPayload, tmpl *template.Template) bool
}

// BaseChannel supplies the shared message-formatting behavior every
// concrete channel embeds.
type BaseChannel struct{}

func payloadPlaceholders(payload AlertPayload) map[string]string {
	tz := payload.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return map[string]string{
		"alert_id":           orN(payload.AlertID),
		"metric_name":        orN(payload.MetricName),
		"timestamp":          payload.Timestamp.In(tz).Format(queryTimestampFormat),
		"detector_name":      orN(payload.DetectorName),
		"value":              fmt.Sprintf("%g", payload.Value),
		"direction":          orN(payload.Direction),
		"severity":           fmt.Sprintf("%g", payload.Severity),
		"consecutive_count":  fmt.Sprintf("%d", payload.ConsecutiveCount),
	}
}

func orN(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// templateFuncs exposes a "dtkDefault" helper a user-supplied template
// can wrap around any placeholder to substitute "N/A" for a blank
// value, the same fallback the named payload placeholders get for free.
var templateFuncs = template.FuncMap{
	"dtkDefault": orN,
}

// ParseChannelTemplate parses text with dtkDefault registered, so a
// channel's configured message template can use it.
func ParseChannelTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, &core.BadTemplateError{Reason: err.Error()}
	}
	return tmpl, nil
}

// FormatMessage renders tmpl against payload's named placeholders,
// falling back to "N/A" for any placeholder the payload does not set,
// and to a terse default message when tmpl is nil. Names outside the
// payload placeholder set render as empty text.
func (BaseChannel) FormatMessage(payload AlertPayload, tmpl *template.Template) (string, error) {
	if tmpl == nil {
		return fmt.Sprintf("[%s] anomaly on %s at %s: value=%g severity=%g",
			orN(payload.Direction), payload.MetricName,
			payload.Timestamp.Format(queryTimestampFormat), payload.Value, payload.Severity), nil
	}

	data := payloadPlaceholders(payload)
	tmpl = tmpl.Funcs(templateFuncs).Option("missingkey=zero")
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &core.BadTemplateError{Reason: err.Error()}
	}
	return buf.String(), nil
}

type webhookBody struct {
	Text      string `json:"text"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	IconURL   string `json:"icon_url,omitempty"`
}

// WebhookChannel POSTs {text, username, icon_emoji|icon_url} JSON to a
// fixed URL. Transport errors and non-2xx responses both return false
// rather than propagating — a channel failure is always localized.
type WebhookChannel struct {
	BaseChannel
	ChannelName string
	URL         string
	Username    string
	IconEmoji   string
	IconURL     string
	Timeout     time.Duration
	Client      *http.Client
}

func (w *WebhookChannel) Name() string { return w.ChannelName }

func (w *WebhookChannel) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (w *WebhookChannel) Send(payload AlertPayload, tmpl *template.Template) bool {
	text, err := w.FormatMessage(payload, tmpl)
	if err != nil {
		return false
	}

	body := webhookBody{
		Text:      text,
		Username:  w.Username,
		IconEmoji: w.IconEmoji,
		IconURL:   w.IconURL,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return false
	}

	req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(encoded))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// NewMattermostChannel constructs a Mattermost-flavored WebhookChannel.
// A blank webhookURL is a BadConfig error: dispatch has nowhere to go.
func NewMattermostChannel(name, webhookURL string) (*WebhookChannel, error) {
	if webhookURL == "" {
		return nil, &core.BadConfigError{Reason: "mattermost channel requires a non-empty webhook URL"}
	}
	return &WebhookChannel{
		ChannelName: name,
		URL:         webhookURL,
		Username:    "detectk",
		IconEmoji:   ":warning:",
		Timeout:     10 * time.Second,
	}, nil
}

// NewWebhookChannel constructs a generic webhook channel. A blank URL
// is a BadConfig error.
func NewWebhookChannel(name, webhookURL string) (*WebhookChannel, error) {
	if webhookURL == "" {
		return nil, &core.BadConfigError{Reason: "webhook channel requires a non-empty URL"}
	}
	return &WebhookChannel{
		ChannelName: name,
		URL:         webhookURL,
		Username:    "detectk",
		Timeout:     10 * time.Second,
	}, nil
}
