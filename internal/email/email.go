// Package email renders delivery bundles and sends them through the
// SendGrid v3 API. It consumes the personalization envelope and never
// reaches back into earlier stages.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/core"
	"courtside/internal/envelope"
	"courtside/internal/httpretry"
	"courtside/internal/logger"
)

const deliveryHTML = `<html><body>
<p>Your NBA takes for {{.RunDate}}:</p>
<ol>
{{- range .Items}}
<li><strong>{{.Teams}}</strong>: {{.Text}}</li>
{{- end}}
</ol>
{{- if .UnsubscribeURL}}
<p><a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>
{{- end}}
</body></html>
`

var htmlTemplate = template.Must(template.New("delivery").Parse(deliveryHTML))

type htmlItem struct {
	Teams string
	Text  string
}

type htmlData struct {
	RunDate        string
	Items          []htmlItem
	UnsubscribeURL string
}

// Rendered is one delivery turned into sendable subject and bodies.
type Rendered struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// Render builds the text and HTML bodies for one delivery.
func Render(delivery core.Delivery, runDate, unsubscribeURL string) (Rendered, error) {
	subject := delivery.Subject
	if subject == "" {
		subject = "NBA Takes - " + runDate
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Your NBA takes for %s:\n", runDate)
	items := make([]htmlItem, 0, len(delivery.Takes))
	for _, take := range delivery.Takes {
		teamLine := strings.Join(take.Teams, ", ")
		fmt.Fprintf(&text, "- %s: %s\n", teamLine, strings.TrimSpace(take.TakeText))
		items = append(items, htmlItem{Teams: teamLine, Text: strings.TrimSpace(take.TakeText)})
	}
	if unsubscribeURL != "" {
		fmt.Fprintf(&text, "\nUnsubscribe: %s\n", unsubscribeURL)
	}

	var html bytes.Buffer
	err := htmlTemplate.Execute(&html, htmlData{
		RunDate:        runDate,
		Items:          items,
		UnsubscribeURL: unsubscribeURL,
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to render delivery HTML: %w", err)
	}

	return Rendered{Subject: subject, TextBody: text.String(), HTMLBody: html.String()}, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// SlugifyTeam turns a team name into the logo asset slug.
func SlugifyTeam(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(slug, "_")
}

// TemplateData fills the dynamic-template slots (three take slots, padded
// with empty strings) when a SendGrid template id is configured.
func TemplateData(delivery core.Delivery, logoBaseURL, logoExt string) map[string]string {
	data := make(map[string]string, 9)
	for slot := 1; slot <= 3; slot++ {
		teamKey := fmt.Sprintf("nba_team_%d", slot)
		takeKey := fmt.Sprintf("nba_take_%d", slot)
		logoKey := fmt.Sprintf("nba_logo_%d", slot)
		if slot > len(delivery.Takes) {
			data[teamKey], data[takeKey], data[logoKey] = "", "", ""
			continue
		}

		take := delivery.Takes[slot-1]
		teamName := ""
		if len(take.Teams) > 0 {
			teamName = take.Teams[0]
		}
		data[teamKey] = teamName
		data[takeKey] = strings.TrimSpace(take.TakeText)
		data[logoKey] = ""
		if slug := SlugifyTeam(teamName); slug != "" && logoBaseURL != "" {
			data[logoKey] = fmt.Sprintf("%s/%s.%s", logoBaseURL, slug, logoExt)
		}
	}
	return data
}

// Sender submits rendered deliveries to SendGrid.
type Sender struct {
	cfg  config.Email
	http *httpretry.Client
}

// NewSender creates a sender. Missing credentials are fatal.
func NewSender(cfg config.Email, httpClient *httpretry.Client) (*Sender, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, fmt.Errorf("sendgrid api key and from address are required (set COURTSIDE_EMAIL_API_KEY / COURTSIDE_EMAIL_FROM_EMAIL)")
	}
	return &Sender{cfg: cfg, http: httpClient}, nil
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridPersonalization struct {
	To           []sendgridAddress `json:"to"`
	Subject      string            `json:"subject,omitempty"`
	TemplateData map[string]string `json:"dynamic_template_data,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridASM struct {
	GroupID int `json:"group_id"`
}

type sendgridRequest struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject,omitempty"`
	Content          []sendgridContent         `json:"content,omitempty"`
	TemplateID       string                    `json:"template_id,omitempty"`
	ASM              *sendgridASM              `json:"asm,omitempty"`
}

// Send submits every delivery in the envelope. Per-message failures are
// returned as stage errors; one bad address never stops the batch.
func (s *Sender) Send(run core.Run, deliveries *envelope.Deliveries) []core.StageError {
	var errs []core.StageError
	for _, delivery := range deliveries.Deliveries {
		if err := s.sendOne(run, delivery); err != nil {
			logger.Error("delivery send failed", err, "user_id", delivery.UserID)
			errs = append(errs, core.StageError{Kind: "send_failed", Detail: fmt.Sprintf("user_id=%s: %v", delivery.UserID, err)})
			continue
		}
		logger.Info("delivery sent", "user_id", delivery.UserID)
	}
	return errs
}

func (s *Sender) sendOne(run core.Run, delivery core.Delivery) error {
	unsubscribeText := delivery.UnsubscribeURL
	unsubscribeHTML := delivery.UnsubscribeURL
	if s.cfg.ASMGroupID > 0 {
		unsubscribeText = "<%asm_group_unsubscribe_raw_url%>"
		unsubscribeHTML = "<%asm_group_unsubscribe_url%>"
	}

	payload := sendgridRequest{
		From: sendgridAddress{Email: s.cfg.FromEmail, Name: s.cfg.FromName},
	}
	if s.cfg.ASMGroupID > 0 {
		payload.ASM = &sendgridASM{GroupID: s.cfg.ASMGroupID}
	}

	if s.cfg.TemplateID != "" {
		payload.TemplateID = s.cfg.TemplateID
		payload.Personalizations = []sendgridPersonalization{{
			To:           []sendgridAddress{{Email: delivery.Email}},
			TemplateData: TemplateData(delivery, s.cfg.LogoBaseURL, s.cfg.LogoExt),
		}}
	} else {
		rendered, err := Render(delivery, run.Date, unsubscribeText)
		if err != nil {
			return err
		}
		renderedHTML, err := Render(delivery, run.Date, unsubscribeHTML)
		if err != nil {
			return err
		}
		payload.Subject = rendered.Subject
		payload.Personalizations = []sendgridPersonalization{{
			To:      []sendgridAddress{{Email: delivery.Email}},
			Subject: rendered.Subject,
		}}
		payload.Content = []sendgridContent{
			{Type: "text/plain", Value: rendered.TextBody},
			{Type: "text/html", Value: renderedHTML.HTMLBody},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode sendgrid payload: %w", err)
	}

	resp, err := s.http.Do(httpretry.Request{
		Method: http.MethodPost,
		URL:    s.cfg.APIURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.cfg.APIKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	}, httpretry.Policy{
		Timeout:       s.cfg.Timeout,
		MaxRetries:    2,
		RetryStatuses: httpretry.Statuses(http.StatusTooManyRequests),
		Strategy:      httpretry.StrategyFixed,
		BaseDelay:     2 * time.Second,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(httpretry.ReadBody(resp))))
	}
	return nil
}
