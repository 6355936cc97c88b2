// Package prompt implements the interactive selection flow used when the
// configuration does not name a capture source or output device.
//
// All answers are read line by line from a single reader, so a prepared
// answer file can drive the flow unattended (see the prompt_script config
// field). Invalid answers are re-asked; end of input is an error.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Device is one selectable audio endpoint.
type Device struct {
	ID   string
	Name string
}

// Source is the capture source chosen by the user: either an input device or
// a process tree.
type Source struct {
	// DeviceID is set when an input device was chosen.
	DeviceID string

	// PID and IncludeTree are set when a process was chosen.
	PID         uint32
	IncludeTree bool
}

// IsProcess reports whether the source is a process rather than a device.
func (s Source) IsProcess() bool { return s.DeviceID == "" }

// Selector asks questions on out and reads answers from in.
type Selector struct {
	in  *bufio.Scanner
	out io.Writer
}

// New creates a Selector reading answers from in and writing prompts to out.
func New(in io.Reader, out io.Writer) *Selector {
	return &Selector{in: bufio.NewScanner(in), out: out}
}

// ChooseSource walks the capture source menu: an input device picked from
// devices, or a process id plus whether to include its children.
func (s *Selector) ChooseSource(devices []Device) (Source, error) {
	fmt.Fprintln(s.out, "Choose input type:")
	fmt.Fprintln(s.out, "1: Device")
	fmt.Fprintln(s.out, "2: Process")

	for {
		n, err := s.askInt("Choice: ")
		if err != nil {
			return Source{}, err
		}
		switch n {
		case 1:
			d, err := s.ChooseDevice("Please select input device:", devices)
			if err != nil {
				return Source{}, err
			}
			return Source{DeviceID: d.ID}, nil
		case 2:
			pid, err := s.askPID("Enter process id to capture: ")
			if err != nil {
				return Source{}, err
			}
			include, err := s.askYesNo("Include child processes? [Y/n]: ", true)
			if err != nil {
				return Source{}, err
			}
			return Source{PID: pid, IncludeTree: include}, nil
		default:
			fmt.Fprintln(s.out, "invalid choice")
		}
	}
}

// ChooseDevice prints label and the numbered device list, then asks for an
// index until a valid one is entered.
func (s *Selector) ChooseDevice(label string, devices []Device) (Device, error) {
	if len(devices) == 0 {
		return Device{}, errors.New("prompt: no active devices to choose from")
	}

	fmt.Fprintln(s.out, label)
	for i, d := range devices {
		fmt.Fprintf(s.out, "%-2d %s\n", i, d.Name)
	}

	for {
		n, err := s.askInt("Choice: ")
		if err != nil {
			return Device{}, err
		}
		if n >= 0 && n < len(devices) {
			return devices[n], nil
		}
		fmt.Fprintf(s.out, "choice out of range (0-%d)\n", len(devices)-1)
	}
}

// ask prints q and returns the next answer line, trimmed.
func (s *Selector) ask(q string) (string, error) {
	fmt.Fprint(s.out, q)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", fmt.Errorf("prompt: read answer: %w", err)
		}
		return "", errors.New("prompt: input closed")
	}
	return strings.TrimSpace(s.in.Text()), nil
}

// askInt re-asks until the answer parses as an integer.
func (s *Selector) askInt(q string) (int, error) {
	for {
		line, err := s.ask(q)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(s.out, "enter a number")
			continue
		}
		return n, nil
	}
}

// askPID re-asks until the answer is a valid nonzero process id.
func (s *Selector) askPID(q string) (uint32, error) {
	for {
		line, err := s.ask(q)
		if err != nil {
			return 0, err
		}
		pid, err := strconv.ParseUint(line, 10, 32)
		if err != nil || pid == 0 {
			fmt.Fprintln(s.out, "enter a nonzero process id")
			continue
		}
		return uint32(pid), nil
	}
}

// askYesNo re-asks until the answer is empty (the default), yes, or no.
func (s *Selector) askYesNo(q string, def bool) (bool, error) {
	for {
		line, err := s.ask(q)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(s.out, "enter y or n")
	}
}
