package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AlertMailer sends operator alerts through the SendGrid v3 API when a
// teardown or sweep fails after Eventarc has exhausted its retries.
type AlertMailer struct {
	APIKey     string
	FromEmail  string
	ToEmail    string
	HTTPClient *http.Client
	Endpoint   string
}

func NewAlertMailer(apiKey string, fromEmail string, toEmail string) *AlertMailer {
	to := strings.TrimSpace(toEmail)
	if to == "" {
		to = "ops@poof.chat"
	}
	return &AlertMailer{
		APIKey:    strings.TrimSpace(apiKey),
		FromEmail: strings.TrimSpace(fromEmail),
		ToEmail:   to,
		Endpoint:  "https://api.sendgrid.com/v3/mail/send",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether the mailer has enough settings to send.
// An unconfigured mailer is a valid state; callers fall back to logs.
func (m *AlertMailer) Configured() bool {
	return m != nil && m.APIKey != "" && m.FromEmail != ""
}

type sendGridEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To         []sendGridEmailAddress `json:"to"`
	Subject    string                 `json:"subject"`
	CustomArgs map[string]string      `json:"custom_args,omitempty"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridEmailAddress      `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

// NotifyTeardownFailure emails the operator inbox about a user teardown
// that failed. uid identifies the deleted account; cause is the terminal
// error after the worker gave up.
func (m *AlertMailer) NotifyTeardownFailure(ctx context.Context, uid string, cause error) error {
	return m.send(ctx,
		fmt.Sprintf("Teardown failed for uid %s", uid),
		fmt.Sprintf("Account teardown for uid %s did not complete.\n\nError:\n%v\n\nOrphaned documents may remain under users/, usernames/, or groups/.\n", uid, cause),
		map[string]string{"uid": uid},
	)
}

// NotifySweepFailure emails the operator inbox about an expired-group
// sweep that finished with errors.
func (m *AlertMailer) NotifySweepFailure(ctx context.Context, deleted int, cause error) error {
	return m.send(ctx,
		"Expired-group sweep finished with errors",
		fmt.Sprintf("Sweep deleted %d group(s) before failing.\n\nLast error:\n%v\n", deleted, cause),
		nil,
	)
}

func (m *AlertMailer) send(ctx context.Context, subject string, plain string, args map[string]string) error {
	if m == nil {
		return fmt.Errorf("alert mailer not configured")
	}
	if m.APIKey == "" {
		return fmt.Errorf("missing ALERT_SENDGRID_API_KEY")
	}
	if m.FromEmail == "" {
		return fmt.Errorf("missing ALERT_FROM_EMAIL")
	}

	reqBody := sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{
			{
				To:         []sendGridEmailAddress{{Email: m.ToEmail}},
				Subject:    subject,
				CustomArgs: args,
			},
		},
		From: sendGridEmailAddress{
			Email: m.FromEmail,
			Name:  "Poof Teardown Worker",
		},
		Content: []sendGridContent{
			{Type: "text/plain", Value: plain},
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid returns 202 Accepted on success.
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	return nil
}
