package backend

import (
	"errors"
	"testing"

	"github.com/matheus3301/imsm/internal/imerr"
)

func TestParseMessageType(t *testing.T) {
	for typ := MessageNormal; typ <= MessageDeliveryReport; typ++ {
		got, err := ParseMessageType(typ.String())
		if err != nil {
			t.Fatalf("ParseMessageType(%q): %v", typ, err)
		}
		if got != typ {
			t.Errorf("ParseMessageType(%q) = %v", typ, got)
		}
	}
	if _, err := ParseMessageType("shout"); !errors.Is(err, imerr.ErrInvalidArgument) {
		t.Errorf("ParseMessageType(shout) error = %v, want ErrInvalidArgument", err)
	}
}

func TestSendable(t *testing.T) {
	if !MessageAutoReply.Sendable() {
		t.Error("auto-reply should be sendable")
	}
	if MessageDeliveryReport.Sendable() {
		t.Error("delivery reports are not sendable")
	}
}
