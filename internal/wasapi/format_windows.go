//go:build windows

package wasapi

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/looptap/looptap/pkg/endpoint"
)

// Wire sizes of the two wave-format shapes. The 18-byte header is packed on
// the wire, which no natural Go struct layout reproduces, so the marshaling
// here is explicit byte work rather than struct casts.
const (
	formatBaseSize = 18
	formatExtSize  = 22
)

// marshalFormat lays f out as the platform's wave-format byte image:
// 18 bytes for a basic format, 40 for an extensible one.
func marshalFormat(f *endpoint.Format) []byte {
	size := formatBaseSize
	var cb uint16
	if f.Ext != nil {
		cb = formatExtSize
		size += formatExtSize
	}
	b := make([]byte, size)
	le := binary.LittleEndian
	le.PutUint16(b[0:], f.Tag)
	le.PutUint16(b[2:], f.Channels)
	le.PutUint32(b[4:], f.SamplesPerSec)
	le.PutUint32(b[8:], f.AvgBytesPerSec)
	le.PutUint16(b[12:], f.BlockAlign)
	le.PutUint16(b[14:], f.BitsPerSample)
	le.PutUint16(b[16:], cb)
	if f.Ext != nil {
		le.PutUint16(b[18:], f.Ext.ValidBits)
		le.PutUint32(b[20:], f.Ext.ChannelMask)
		copy(b[24:], f.Ext.SubFormat[:])
	}
	return b
}

// parseFormat reads a platform-allocated wave-format image. It copies
// everything out, so the caller may free the allocation as soon as it
// returns.
func parseFormat(p unsafe.Pointer) (*endpoint.Format, error) {
	if p == nil {
		return nil, fmt.Errorf("wasapi: parse format: nil format pointer")
	}
	le := binary.LittleEndian
	head := unsafe.Slice((*byte)(p), formatBaseSize)
	f := &endpoint.Format{
		Tag:            le.Uint16(head[0:]),
		Channels:       le.Uint16(head[2:]),
		SamplesPerSec:  le.Uint32(head[4:]),
		AvgBytesPerSec: le.Uint32(head[8:]),
		BlockAlign:     le.Uint16(head[12:]),
		BitsPerSample:  le.Uint16(head[14:]),
	}
	if f.Tag == endpoint.FormatExtensible {
		if cb := le.Uint16(head[16:]); cb < formatExtSize {
			return nil, fmt.Errorf("wasapi: parse format: extensible tail truncated (cbSize=%d)", cb)
		}
		tail := unsafe.Slice((*byte)(p), formatBaseSize+formatExtSize)[formatBaseSize:]
		ext := &endpoint.FormatExt{
			ValidBits:   le.Uint16(tail[0:]),
			ChannelMask: le.Uint32(tail[2:]),
		}
		copy(ext.SubFormat[:], tail[6:])
		f.Ext = ext
	}
	return f, nil
}
