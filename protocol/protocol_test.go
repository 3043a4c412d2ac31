package protocol

import (
	"strings"
	"testing"
)

func TestDecodeDispatchesOnType(t *testing.T) {
	frame := []byte(`{"type":"trigger-rewrite","selection":"make this better"}`)

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeTriggerRewrite {
		t.Errorf("unexpected type: %s", msg.Type)
	}
	if msg.Selection != "make this better" {
		t.Errorf("unexpected selection: %q", msg.Selection)
	}
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"selection":"text but no type"}`))
	if err == nil {
		t.Fatal("expected an error for a frame without a type discriminator")
	}
	if !strings.Contains(err.Error(), "missing type discriminator") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestDecodePassesUnknownTypesThrough(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"future-feature"}`))
	if err != nil {
		t.Fatalf("unknown types are the receiver's problem, got %v", err)
	}
	if msg.Type != Type("future-feature") {
		t.Errorf("unexpected type: %s", msg.Type)
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	b, err := Encode(Message{Type: TypePing, ID: "probe-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "tabId") || strings.Contains(s, "selection") {
		t.Errorf("empty fields must be omitted from the frame: %s", s)
	}
	if !strings.Contains(s, `"type":"ping"`) || !strings.Contains(s, `"id":"probe-1"`) {
		t.Errorf("frame missing populated fields: %s", s)
	}
}
