package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageJSONAnswer(t *testing.T) {
	raw := []byte(`{"type":"answer","text":"部活"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	answer, ok := msg.(Answer)
	if !ok {
		t.Fatalf("message type = %T, want Answer", msg)
	}
	if answer.Text != "部活" {
		t.Fatalf("Text = %q, want %q", answer.Text, "部活")
	}
}

func TestParseClientMessageLegacyControlStrings(t *testing.T) {
	msg, err := ParseClientMessage([]byte("start_camera"))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if _, ok := msg.(StartCamera); !ok {
		t.Fatalf("message type = %T, want StartCamera", msg)
	}

	msg, err = ParseClientMessage([]byte("start_interview"))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if _, ok := msg.(StartInterview); !ok {
		t.Fatalf("message type = %T, want StartInterview", msg)
	}
}

func TestParseClientMessageLegacyAnswerText(t *testing.T) {
	msg, err := ParseClientMessage([]byte("夏"))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	answer, ok := msg.(Answer)
	if !ok {
		t.Fatalf("message type = %T, want Answer", msg)
	}
	if answer.Text != "夏" {
		t.Fatalf("Text = %q, want %q", answer.Text, "夏")
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsEmptyAnswer(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"answer","text":"  "}`)); err == nil {
		t.Fatalf("expected validation error for empty answer text")
	}
	if _, err := ParseClientMessage([]byte("   ")); err == nil {
		t.Fatalf("expected validation error for blank frame")
	}
}
