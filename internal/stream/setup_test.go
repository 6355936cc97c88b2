package stream

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/looptap/looptap/pkg/endpoint"
	"github.com/looptap/looptap/pkg/endpoint/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetupBasicPathFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role Role
		want endpoint.StreamFlags
	}{
		{"capture taps via loopback", RoleCapture, endpoint.FlagLoopback | endpoint.FlagEventCallback},
		{"render is event driven only", RoleRender, endpoint.FlagEventCallback},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cli := &mock.Client{BufferSizeResult: 480}
			info, err := Setup(cli, tc.role, nil, mock.NewEvent(), discardLogger())
			if err != nil {
				t.Fatalf("Setup: %v", err)
			}
			if len(cli.InitCalls) != 1 {
				t.Fatalf("Initialize called %d times, want 1", len(cli.InitCalls))
			}
			ic := cli.InitCalls[0]
			if ic.Flags != tc.want {
				t.Errorf("flags = 0x%08X, want 0x%08X", uint32(ic.Flags), uint32(tc.want))
			}
			if ic.Mode != endpoint.ShareModeShared {
				t.Errorf("mode = %d, want shared", ic.Mode)
			}
			if ic.BufferDuration != 10*time.Millisecond {
				t.Errorf("buffer duration = %v, want 10ms", ic.BufferDuration)
			}
			if info.Period != 10*time.Millisecond {
				t.Errorf("Period = %v, want 10ms", info.Period)
			}
		})
	}
}

func TestSetupFallbackFormat(t *testing.T) {
	t.Parallel()

	cli := &mock.Client{
		MixFormatError:   errors.New("loopback taps have no mix format"),
		BufferSizeResult: 480,
	}
	info, err := Setup(cli, RoleCapture, nil, mock.NewEvent(), discardLogger())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if len(cli.InitCalls) != 1 {
		t.Fatalf("Initialize called %d times, want 1", len(cli.InitCalls))
	}

	f := cli.InitCalls[0].Format
	if f.Tag != endpoint.FormatIEEEFloat {
		t.Errorf("Tag = 0x%04X, want IEEE float", f.Tag)
	}
	if f.Channels != 2 {
		t.Errorf("Channels = %d, want 2", f.Channels)
	}
	if f.SamplesPerSec != 48000 {
		t.Errorf("SamplesPerSec = %d, want 48000", f.SamplesPerSec)
	}
	if f.BitsPerSample != 32 {
		t.Errorf("BitsPerSample = %d, want 32", f.BitsPerSample)
	}
	if f.BlockAlign != 8 {
		t.Errorf("BlockAlign = %d, want 8", f.BlockAlign)
	}
	if info.BlockAlign != 8 {
		t.Errorf("info.BlockAlign = %d, want 8", info.BlockAlign)
	}
}

func TestSetupUsesCallerFormat(t *testing.T) {
	t.Parallel()

	want := &endpoint.Format{
		Tag:            endpoint.FormatPCM,
		Channels:       1,
		SamplesPerSec:  16000,
		AvgBytesPerSec: 32000,
		BlockAlign:     2,
		BitsPerSample:  16,
	}
	cli := &mock.Client{BufferSizeResult: 160}
	info, err := Setup(cli, RoleRender, want, mock.NewEvent(), discardLogger())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if got := cli.InitCalls[0].Format; got != want {
		t.Errorf("Initialize format = %+v, want the caller's format", got)
	}
	if info.Format != want {
		t.Errorf("info.Format = %+v, want the caller's format", info.Format)
	}
	if info.BlockAlign != 2 {
		t.Errorf("info.BlockAlign = %d, want 2", info.BlockAlign)
	}
}

func TestSetupLowLatencyPath(t *testing.T) {
	t.Parallel()

	cli := &mock.Client{
		LowLatencySupported: true,
		EnginePeriodsResult: endpoint.EnginePeriods{Default: 480, Fundamental: 8, Min: 128, Max: 480},
		BufferSizeResult:    528,
	}
	info, err := Setup(cli, RoleCapture, nil, mock.NewEvent(), discardLogger())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	if len(cli.Categories) != 1 || cli.Categories[0] != endpoint.CategoryMedia {
		t.Errorf("Categories = %v, want exactly [CategoryMedia]", cli.Categories)
	}
	if len(cli.LowLatencyInitCalls) != 1 {
		t.Fatalf("InitializeLowLatency called %d times, want 1", len(cli.LowLatencyInitCalls))
	}
	if got := cli.LowLatencyInitCalls[0].PeriodFrames; got != 128 {
		t.Errorf("period = %d frames, want the 128-frame minimum", got)
	}
	if len(cli.InitCalls) != 0 {
		t.Errorf("Initialize called %d times, want 0 on the low-latency path", len(cli.InitCalls))
	}
	// 128 frames at 48 kHz.
	if want := 2666666 * time.Nanosecond; info.Period != want {
		t.Errorf("Period = %v, want %v", info.Period, want)
	}
	if info.BufferFrames != 528 {
		t.Errorf("BufferFrames = %d, want 528", info.BufferFrames)
	}
}

func TestSetupEnginePeriodsFailureIsFatal(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("periods query refused")
	cli := &mock.Client{
		LowLatencySupported: true,
		EnginePeriodsError:  sentinel,
	}
	if _, err := Setup(cli, RoleCapture, nil, mock.NewEvent(), discardLogger()); !errors.Is(err, sentinel) {
		t.Fatalf("Setup error = %v, want the periods error wrapped", err)
	}
	if cli.CallCountStart != 0 {
		t.Error("Start called despite failed setup")
	}
}

func TestSetupBindsEventAndStarts(t *testing.T) {
	t.Parallel()

	ev := mock.NewEvent()
	cli := &mock.Client{BufferSizeResult: 960}
	info, err := Setup(cli, RoleRender, nil, ev, discardLogger())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if len(cli.EventHandles) != 1 || cli.EventHandles[0] != endpoint.Event(ev) {
		t.Errorf("EventHandles = %v, want exactly the caller's event", cli.EventHandles)
	}
	if cli.CallCountStart != 1 {
		t.Errorf("Start called %d times, want 1", cli.CallCountStart)
	}
	if info.BufferFrames != 960 {
		t.Errorf("BufferFrames = %d, want 960", info.BufferFrames)
	}
}

func TestSetupStartFailure(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("endpoint busy")
	cli := &mock.Client{StartError: sentinel}
	if _, err := Setup(cli, RoleCapture, nil, mock.NewEvent(), discardLogger()); !errors.Is(err, sentinel) {
		t.Fatalf("Setup error = %v, want the start error wrapped", err)
	}
}
