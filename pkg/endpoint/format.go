package endpoint

import "fmt"

// Format tags, matching the platform's wave-format tag values.
const (
	// FormatPCM is integer PCM.
	FormatPCM uint16 = 0x0001

	// FormatIEEEFloat is 32-bit floating-point PCM.
	FormatIEEEFloat uint16 = 0x0003

	// FormatExtensible marks a format whose real identity lives in the
	// [FormatExt] extension.
	FormatExtensible uint16 = 0xFFFE
)

// SubFormat is a format GUID in wire layout (Data1 through Data4, little
// endian). Only the two PCM subformats matter to looptap.
type SubFormat [16]byte

var (
	// SubFormatPCM is the extensible equivalent of [FormatPCM].
	SubFormatPCM = SubFormat{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

	// SubFormatIEEEFloat is the extensible equivalent of [FormatIEEEFloat].
	SubFormatIEEEFloat = SubFormat{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}
)

// Format describes a PCM stream layout. It models the platform's two wave
// format shapes as one struct: a basic format has Ext == nil and its tag
// names the encoding directly; an extensible format has Tag ==
// [FormatExtensible] and carries the encoding in Ext.SubFormat.
//
// All byte arithmetic in the pipeline goes through BlockAlign, so a Format
// with a consistent BlockAlign is usable even when the encoding is opaque.
type Format struct {
	// Tag is the encoding tag: [FormatPCM], [FormatIEEEFloat], or
	// [FormatExtensible].
	Tag uint16

	// Channels is the interleaved channel count.
	Channels uint16

	// SamplesPerSec is the sample rate in Hz.
	SamplesPerSec uint32

	// AvgBytesPerSec is SamplesPerSec × BlockAlign.
	AvgBytesPerSec uint32

	// BlockAlign is the size of one frame in bytes: Channels ×
	// BitsPerSample/8.
	BlockAlign uint16

	// BitsPerSample is the container size of one sample.
	BitsPerSample uint16

	// Ext carries the extensible fields when Tag == [FormatExtensible].
	Ext *FormatExt
}

// FormatExt is the extensible tail of a [Format].
type FormatExt struct {
	// ValidBits is the number of meaningful bits per sample, at most
	// BitsPerSample.
	ValidBits uint16

	// ChannelMask maps channels to speaker positions.
	ChannelMask uint32

	// SubFormat identifies the encoding.
	SubFormat SubFormat
}

// DefaultFormat returns the fallback stream format used when an endpoint
// cannot report a mix format: 32-bit float, stereo, 48 kHz, 8-byte frames.
func DefaultFormat() *Format {
	return &Format{
		Tag:            FormatIEEEFloat,
		Channels:       2,
		SamplesPerSec:  48000,
		AvgBytesPerSec: 48000 * 8,
		BlockAlign:     8,
		BitsPerSample:  32,
	}
}

// IsFloat reports whether the format carries IEEE float samples, looking
// through the extensible wrapper when present.
func (f *Format) IsFloat() bool {
	if f.Tag == FormatExtensible {
		return f.Ext != nil && f.Ext.SubFormat == SubFormatIEEEFloat
	}
	return f.Tag == FormatIEEEFloat
}

// FrameBytes returns the size in bytes of n frames.
func (f *Format) FrameBytes(n uint32) int {
	return int(n) * int(f.BlockAlign)
}

// Clone returns a deep copy of f.
func (f *Format) Clone() *Format {
	c := *f
	if f.Ext != nil {
		ext := *f.Ext
		c.Ext = &ext
	}
	return &c
}

// String renders the format compactly for logs, e.g.
// "2ch 48000Hz 32-bit float (8-byte frames)".
func (f *Format) String() string {
	enc := "pcm"
	switch {
	case f.IsFloat():
		enc = "float"
	case f.Tag == FormatExtensible:
		enc = "extensible"
	}
	return fmt.Sprintf("%dch %dHz %d-bit %s (%d-byte frames)",
		f.Channels, f.SamplesPerSec, f.BitsPerSample, enc, f.BlockAlign)
}
