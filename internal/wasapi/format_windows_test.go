//go:build windows

package wasapi

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/looptap/looptap/pkg/endpoint"
)

func TestMarshalFormat_BasicLayout(t *testing.T) {
	t.Parallel()

	b := marshalFormat(endpoint.DefaultFormat())
	if len(b) != formatBaseSize {
		t.Fatalf("len(marshalFormat) = %d, want %d", len(b), formatBaseSize)
	}

	le := binary.LittleEndian
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"tag", uint32(le.Uint16(b[0:])), uint32(endpoint.FormatIEEEFloat)},
		{"channels", uint32(le.Uint16(b[2:])), 2},
		{"samples_per_sec", le.Uint32(b[4:]), 48000},
		{"avg_bytes_per_sec", le.Uint32(b[8:]), 48000 * 8},
		{"block_align", uint32(le.Uint16(b[12:])), 8},
		{"bits_per_sample", uint32(le.Uint16(b[14:])), 32},
		{"cb_size", uint32(le.Uint16(b[16:])), 0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
}

func TestMarshalFormat_ExtensibleLayout(t *testing.T) {
	t.Parallel()

	f := &endpoint.Format{
		Tag:            endpoint.FormatExtensible,
		Channels:       2,
		SamplesPerSec:  44100,
		AvgBytesPerSec: 44100 * 8,
		BlockAlign:     8,
		BitsPerSample:  32,
		Ext: &endpoint.FormatExt{
			ValidBits:   24,
			ChannelMask: 0x3,
			SubFormat:   endpoint.SubFormatIEEEFloat,
		},
	}
	b := marshalFormat(f)
	if len(b) != formatBaseSize+formatExtSize {
		t.Fatalf("len(marshalFormat) = %d, want %d", len(b), formatBaseSize+formatExtSize)
	}

	le := binary.LittleEndian
	if got := le.Uint16(b[16:]); got != formatExtSize {
		t.Errorf("cb_size = %d, want %d", got, formatExtSize)
	}
	if got := le.Uint16(b[18:]); got != 24 {
		t.Errorf("valid_bits = %d, want 24", got)
	}
	if got := le.Uint32(b[20:]); got != 0x3 {
		t.Errorf("channel_mask = 0x%X, want 0x3", got)
	}
	if got := endpoint.SubFormat(b[24:40]); got != endpoint.SubFormatIEEEFloat {
		t.Errorf("sub_format = %v, want IEEE float", got)
	}
}

func TestParseFormat_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    *endpoint.Format
	}{
		{"float fallback", endpoint.DefaultFormat()},
		{"16-bit pcm", &endpoint.Format{
			Tag:            endpoint.FormatPCM,
			Channels:       1,
			SamplesPerSec:  16000,
			AvgBytesPerSec: 16000 * 2,
			BlockAlign:     2,
			BitsPerSample:  16,
		}},
		{"extensible float", &endpoint.Format{
			Tag:            endpoint.FormatExtensible,
			Channels:       2,
			SamplesPerSec:  48000,
			AvgBytesPerSec: 48000 * 8,
			BlockAlign:     8,
			BitsPerSample:  32,
			Ext: &endpoint.FormatExt{
				ValidBits:   32,
				ChannelMask: 0x3,
				SubFormat:   endpoint.SubFormatIEEEFloat,
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := marshalFormat(tt.f)
			got, err := parseFormat(unsafe.Pointer(&b[0]))
			if err != nil {
				t.Fatalf("parseFormat() error = %v", err)
			}
			gotBase, wantBase := *got, *tt.f
			gotBase.Ext, wantBase.Ext = nil, nil
			if gotBase != wantBase {
				t.Errorf("parseFormat() base = %+v, want %+v", gotBase, wantBase)
			}
			if tt.f.Ext != nil {
				if got.Ext == nil {
					t.Fatal("parseFormat() dropped extensible fields")
				}
				if *got.Ext != *tt.f.Ext {
					t.Errorf("parseFormat() ext = %+v, want %+v", got.Ext, tt.f.Ext)
				}
			} else if got.Ext != nil {
				t.Errorf("parseFormat() ext = %+v, want nil", got.Ext)
			}
		})
	}
}

func TestParseFormat_TruncatedExtensible(t *testing.T) {
	t.Parallel()

	f := &endpoint.Format{
		Tag:           endpoint.FormatExtensible,
		Channels:      2,
		SamplesPerSec: 48000,
		BlockAlign:    8,
		BitsPerSample: 32,
	}
	// No Ext: the image claims extensible but carries no tail.
	b := marshalFormat(f)
	if _, err := parseFormat(unsafe.Pointer(&b[0])); err == nil {
		t.Fatal("parseFormat() accepted an extensible header with cbSize 0")
	}
}
