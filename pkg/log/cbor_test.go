package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeMessageEvent(t *testing.T) {
	d := 12 * time.Millisecond
	event := Event{
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC),
		SessionID: "sess-1",
		Direction: DirectionIn,
		Layer:     LayerSession,
		Category:  CategoryMessage,
		Resource:  "TCPIP0::10.0.0.7::5025::SOCKET",
		Message: &MessageEvent{
			Type:     MessageTypeResponse,
			Text:     "PANASONIC,VP-8122A",
			Attempt:  4,
			Duration: &d,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", got.Timestamp, event.Timestamp)
	}
	if got.Resource != event.Resource {
		t.Errorf("Resource: got %q, want %q", got.Resource, event.Resource)
	}
	if got.Message == nil {
		t.Fatal("Message is nil")
	}
	if got.Message.Text != "PANASONIC,VP-8122A" || got.Message.Attempt != 4 {
		t.Errorf("Message: got %+v", got.Message)
	}
	if got.Message.Duration == nil || *got.Message.Duration != d {
		t.Errorf("Duration: got %v, want %v", got.Message.Duration, d)
	}
	if got.Frame != nil || got.Retry != nil {
		t.Error("unexpected payloads set")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	event := Event{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		SessionID: "s",
		Category:  CategoryRetry,
		Retry:     &RetryEvent{Command: "*IDN?", Attempt: 1, MaxAttempts: 10, Delay: 5 * time.Second, Timeout: true},
	}
	a, err := EncodeEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}

func TestStreamEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := 1; i <= 3; i++ {
		if err := enc.Encode(Event{SessionID: "s", Message: &MessageEvent{Type: MessageTypeCommand, Text: "AM ON", Attempt: i}}); err != nil {
			t.Fatal(err)
		}
	}

	dec := NewDecoder(&buf)
	for i := 1; i <= 3; i++ {
		var e Event
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if e.Message.Attempt != i {
			t.Errorf("event %d: attempt %d", i, e.Message.Attempt)
		}
	}
}
