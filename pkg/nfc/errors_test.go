package nfc

import (
	"errors"
	"testing"
)

func TestFaultCodeTaxonomy(t *testing.T) {
	tests := []struct {
		code FaultCode
		want string
	}{
		{FaultNone, "none"},
		{FaultCommandNotSupported, "command not supported"},
		{FaultCommandNotRecognized, "command not recognized"},
		{FaultOptionNotSupported, "option not supported"},
		{FaultUnknown, "unknown"},
		{FaultBlockNotAvailable, "block not available"},
		{FaultBlockAlreadyLocked, "block already locked"},
		{FaultContentCannotBeChanged, "block content cannot be changed"},
	}

	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("FaultCode(0x%02x).String() = %q, want %q", byte(tt.code), got, tt.want)
		}
		if !tt.code.Known() {
			t.Errorf("FaultCode(0x%02x) not recognized as known", byte(tt.code))
		}
	}
}

func TestFaultCodeUnknownRendersAsHex(t *testing.T) {
	code := FaultCode(0x42)
	if code.Known() {
		t.Fatal("0x42 must not be in the taxonomy")
	}
	if got := code.String(); got != "unknown code 0x42" {
		t.Fatalf("String() = %q", got)
	}
}

func TestTagErrorPreservesStatus(t *testing.T) {
	err := error(&TagError{Status: FaultBlockAlreadyLocked})
	if got := err.Error(); got != "tag error 0x11: block already locked" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestProtocolErrorWrapsCause(t *testing.T) {
	cause := &TagError{Status: FaultBlockNotAvailable}
	err := error(&ProtocolError{Kind: ErrKindReadBlocks, Op: "read blocks #0-#2", Err: cause})

	var tagErr *TagError
	if !errors.As(err, &tagErr) || tagErr.Status != FaultBlockNotAvailable {
		t.Fatalf("cause lost: %v", err)
	}
	if got := err.Error(); got != "read blocks error: read blocks #0-#2: tag error 0x10: block not available" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestProtocolErrorWithoutCause(t *testing.T) {
	err := error(&ProtocolError{Kind: ErrKindCommandNotSupported, Op: "raw read requires security generation 0"})
	if got := err.Error(); got != "command not supported: raw read requires security generation 0" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestParseTaskRequest(t *testing.T) {
	for _, task := range []TaskRequest{
		TaskActivate, TaskEnableStreaming, TaskReadFRAM,
		TaskUnlock, TaskReset, TaskProlong, TaskDump,
	} {
		name := task.String()
		if task == TaskEnableStreaming {
			name = "enable_streaming"
		}
		if task == TaskReadFRAM {
			name = "read_fram"
		}
		got, err := ParseTaskRequest(name)
		if err != nil || got != task {
			t.Errorf("ParseTaskRequest(%q) = %v, %v", name, got, err)
		}
	}

	if _, err := ParseTaskRequest("defrost"); err == nil {
		t.Fatal("expected an error for an unknown task")
	}
}
