package twilio

import (
	"net/url"
	"strings"
	"testing"
)

func TestParseInbound(t *testing.T) {
	t.Parallel()

	form := url.Values{
		"From":       {"+15550001111"},
		"To":         {"+15550009999"},
		"Body":       {"What does this verse mean?"},
		"MessageSid": {"SMabc"},
	}

	in := ParseInbound(form)
	if in.From != "+15550001111" {
		t.Fatalf("unexpected From: %q", in.From)
	}
	if in.To != "+15550009999" {
		t.Fatalf("unexpected To: %q", in.To)
	}
	if in.Body != "What does this verse mean?" {
		t.Fatalf("unexpected Body: %q", in.Body)
	}
	if in.MessageSID != "SMabc" {
		t.Fatalf("unexpected MessageSid: %q", in.MessageSID)
	}
}

func TestTwiML_Empty(t *testing.T) {
	t.Parallel()

	out := TwiML("")
	if !strings.Contains(out, "<Response></Response>") {
		t.Fatalf("expected empty Response element, got %q", out)
	}
	if !strings.HasPrefix(out, "<?xml") {
		t.Fatalf("expected xml header, got %q", out)
	}
}

func TestTwiML_EscapesContent(t *testing.T) {
	t.Parallel()

	out := TwiML(`He said "love <your> neighbor & more"`)
	if strings.Contains(out, "<your>") {
		t.Fatalf("expected escaped angle brackets, got %q", out)
	}
	if !strings.Contains(out, "&amp;") {
		t.Fatalf("expected escaped ampersand, got %q", out)
	}
	if !strings.Contains(out, "<Message>") {
		t.Fatalf("expected Message element, got %q", out)
	}
}
