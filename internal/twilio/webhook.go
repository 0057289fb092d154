package twilio

import (
	"encoding/xml"
	"net/url"
)

// Inbound is one delivered SMS as posted by the Twilio webhook.
type Inbound struct {
	From       string
	To         string
	Body       string
	MessageSID string
}

// ParseInbound extracts the inbound message fields from webhook form data.
func ParseInbound(form url.Values) Inbound {
	return Inbound{
		From:       form.Get("From"),
		To:         form.Get("To"),
		Body:       form.Get("Body"),
		MessageSID: form.Get("MessageSid"),
	}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// TwiML renders a webhook acknowledgment. An empty text produces the
// bare <Response></Response> used when the reply was already sent over
// the REST API.
func TwiML(text string) string {
	out, err := xml.Marshal(twimlResponse{Message: text})
	if err != nil {
		return `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	}
	return xml.Header + string(out)
}
