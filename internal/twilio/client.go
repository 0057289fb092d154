// Package twilio sends SMS through the Twilio Messages API and parses
// inbound webhook requests.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrDelivery means the transport refused or failed to accept the message.
var ErrDelivery = errors.New("twilio: delivery failed")

type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	contentMax int
	client     *http.Client
}

func NewClient(accountSID, authToken, fromNumber, baseURL string, contentMax int) *Client {
	if contentMax <= 0 {
		contentMax = 1600 // Twilio body limit
	}
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		contentMax: contentMax,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

// Send delivers one SMS and returns the Twilio message SID.
func (c *Client) Send(ctx context.Context, recipient, text string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("%w: no recipient phone number", ErrDelivery)
	}
	if n := utf8.RuneCountInString(text); n > c.contentMax {
		return "", fmt.Errorf("%w: content length %d exceeds %d chars", ErrDelivery, n, c.contentMax)
	}

	form := url.Values{
		"To":   {recipient},
		"From": {c.fromNumber},
		"Body": {text},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: unexpected status code %d body=%q", ErrDelivery, resp.StatusCode, string(body))
	}

	var cr createResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("%w: failed to decode json: %v body=%q", ErrDelivery, err, string(body))
	}
	if cr.SID == "" {
		return "", fmt.Errorf("%w: missing sid in response body=%q", ErrDelivery, string(body))
	}
	return cr.SID, nil
}
