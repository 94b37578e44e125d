package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// Sender sends transactional auction emails. Nil-safe no-op when unconfigured.
type Sender interface {
	SendOutbid(ctx context.Context, toEmail, carName string, newAmount decimal.Decimal) error
	SendAuctionWon(ctx context.Context, toEmail, carName string, finalPrice decimal.Decimal) error
}

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender `json:"sender"`
	To          []BrevoTo   `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// BrevoClient sends emails via the Brevo (Sendinblue) API.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@carbid.example"
}

func (c *BrevoClient) send(ctx context.Context, toEmail, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "CarBid"},
		To:          []BrevoTo{{Email: toEmail}},
		Subject:     subject,
		HTMLContent: html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoAPI, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *BrevoClient) SendOutbid(ctx context.Context, toEmail, carName string, newAmount decimal.Decimal) error {
	subject := "You have been outbid"
	html := fmt.Sprintf(
		"<p>Someone outbid you on <strong>%s</strong>.</p><p>New current bid: <strong>%s</strong>. Place a higher bid to get back in the race.</p>",
		carName, newAmount.StringFixed(2))
	return c.send(ctx, toEmail, subject, html)
}

func (c *BrevoClient) SendAuctionWon(ctx context.Context, toEmail, carName string, finalPrice decimal.Decimal) error {
	subject := "Congratulations, you won the auction"
	html := fmt.Sprintf(
		"<p>You won the auction for <strong>%s</strong> at <strong>%s</strong>.</p><p>We will contact you with next steps.</p>",
		carName, finalPrice.StringFixed(2))
	return c.send(ctx, toEmail, subject, html)
}
