package endpoint

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusCodeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code StatusCode
		want string
	}{
		{0x88890008, "0x88890008"},
		{0x80070005, "0x80070005"},
		{0, "0x00000000"},
	}
	for _, tc := range tests {
		if got := tc.code.String(); got != tc.want {
			t.Errorf("StatusCode(%d).String() = %q, want %q", uint32(tc.code), got, tc.want)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	t.Parallel()

	err := &StatusError{Op: "GetBuffer", Code: 0x88890008}
	want := "endpoint: GetBuffer failed: status 0x88890008"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAsStatusFindsWrappedError(t *testing.T) {
	t.Parallel()

	inner := &StatusError{Op: "Initialize", Code: 0x80070057}
	wrapped := fmt.Errorf("stream: initialize: %w", fmt.Errorf("wasapi: %w", inner))

	se, ok := AsStatus(wrapped)
	if !ok {
		t.Fatal("AsStatus did not find the status error in the chain")
	}
	if se != inner {
		t.Errorf("AsStatus = %v, want the original error value", se)
	}

	if _, ok := AsStatus(errors.New("plain")); ok {
		t.Error("AsStatus reported a status on a plain error")
	}
	if _, ok := AsStatus(nil); ok {
		t.Error("AsStatus reported a status on nil")
	}
}

func TestIsStatusMatchesCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("activate: %w", &StatusError{Op: "ActivateAudioInterfaceAsync", Code: 0x88890008})
	if !IsStatus(err, 0x88890008) {
		t.Error("IsStatus missed the matching code")
	}
	if IsStatus(err, 0x80070005) {
		t.Error("IsStatus matched a different code")
	}
	if IsStatus(errors.New("plain"), 0x88890008) {
		t.Error("IsStatus matched an error with no status")
	}
}
