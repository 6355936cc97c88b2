package prompt

import (
	"bytes"
	"strings"
	"testing"
)

var testDevices = []Device{
	{ID: "{dev-0}", Name: "Speakers (Realtek High Definition Audio)"},
	{ID: "{dev-1}", Name: "Headphones (USB Audio)"},
	{ID: "{dev-2}", Name: "Digital Output (HDMI)"},
}

// run creates a Selector fed from scripted answers.
func run(answers string) (*Selector, *bytes.Buffer) {
	var out bytes.Buffer
	return New(strings.NewReader(answers), &out), &out
}

func TestChooseDevice_PicksByIndex(t *testing.T) {
	s, out := run("1\n")

	d, err := s.ChooseDevice("Please select output device:", testDevices)
	if err != nil {
		t.Fatalf("ChooseDevice: %v", err)
	}
	if d.ID != "{dev-1}" {
		t.Errorf("chosen device = %q, want %q", d.ID, "{dev-1}")
	}

	prompted := out.String()
	if !strings.Contains(prompted, "Please select output device:") {
		t.Error("label not printed")
	}
	for _, d := range testDevices {
		if !strings.Contains(prompted, d.Name) {
			t.Errorf("device %q not listed", d.Name)
		}
	}
}

func TestChooseDevice_RepromptsOnBadInput(t *testing.T) {
	s, out := run("9\nx\n2\n")

	d, err := s.ChooseDevice("Please select output device:", testDevices)
	if err != nil {
		t.Fatalf("ChooseDevice: %v", err)
	}
	if d.ID != "{dev-2}" {
		t.Errorf("chosen device = %q, want %q", d.ID, "{dev-2}")
	}
	if !strings.Contains(out.String(), "out of range") {
		t.Error("missing out-of-range hint")
	}
	if !strings.Contains(out.String(), "enter a number") {
		t.Error("missing non-numeric hint")
	}
}

func TestChooseDevice_EmptyListFails(t *testing.T) {
	s, _ := run("0\n")

	if _, err := s.ChooseDevice("Please select input device:", nil); err == nil {
		t.Error("ChooseDevice with no devices did not fail")
	}
}

func TestChooseSource_Device(t *testing.T) {
	s, _ := run("1\n0\n")

	src, err := s.ChooseSource(testDevices)
	if err != nil {
		t.Fatalf("ChooseSource: %v", err)
	}
	if src.IsProcess() {
		t.Error("source reported as process, want device")
	}
	if src.DeviceID != "{dev-0}" {
		t.Errorf("DeviceID = %q, want %q", src.DeviceID, "{dev-0}")
	}
}

func TestChooseSource_ProcessWithDefaultTree(t *testing.T) {
	s, _ := run("2\n4242\n\n")

	src, err := s.ChooseSource(testDevices)
	if err != nil {
		t.Fatalf("ChooseSource: %v", err)
	}
	if !src.IsProcess() {
		t.Error("source reported as device, want process")
	}
	if src.PID != 4242 {
		t.Errorf("PID = %d, want 4242", src.PID)
	}
	if !src.IncludeTree {
		t.Error("IncludeTree = false, want true by default")
	}
}

func TestChooseSource_ProcessExcludingChildren(t *testing.T) {
	s, _ := run("2\n4242\nn\n")

	src, err := s.ChooseSource(testDevices)
	if err != nil {
		t.Fatalf("ChooseSource: %v", err)
	}
	if src.IncludeTree {
		t.Error("IncludeTree = true, want false")
	}
}

func TestChooseSource_RepromptsOnBadMenuChoice(t *testing.T) {
	s, out := run("3\n2\n77\ny\n")

	src, err := s.ChooseSource(testDevices)
	if err != nil {
		t.Fatalf("ChooseSource: %v", err)
	}
	if src.PID != 77 {
		t.Errorf("PID = %d, want 77", src.PID)
	}
	if !strings.Contains(out.String(), "invalid choice") {
		t.Error("missing invalid-choice hint")
	}
}

func TestChooseSource_RejectsZeroPID(t *testing.T) {
	s, out := run("2\n0\n7\ny\n")

	src, err := s.ChooseSource(testDevices)
	if err != nil {
		t.Fatalf("ChooseSource: %v", err)
	}
	if src.PID != 7 {
		t.Errorf("PID = %d, want 7", src.PID)
	}
	if !strings.Contains(out.String(), "nonzero") {
		t.Error("missing nonzero-pid hint")
	}
}

func TestChooseSource_InputClosed(t *testing.T) {
	s, _ := run("")

	if _, err := s.ChooseSource(testDevices); err == nil {
		t.Error("ChooseSource on closed input did not fail")
	}
}
