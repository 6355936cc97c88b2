package stream

import (
	"bytes"
	"runtime"
	"testing"
	"time"
)

func TestRingRoundTrip(t *testing.T) {
	t.Parallel()

	prod, cons := NewRing(64)
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !prod.TryWrite(src) {
		t.Fatal("TryWrite rejected a fitting chunk")
	}
	if got := cons.Buffered(); got != len(src) {
		t.Errorf("Buffered = %d, want %d", got, len(src))
	}

	dst := make([]byte, 16)
	n := cons.Read(dst)
	if n != len(src) {
		t.Fatalf("Read = %d bytes, want %d", n, len(src))
	}
	if !bytes.Equal(dst[:n], src) {
		t.Errorf("Read = %v, want %v", dst[:n], src)
	}
	if got := cons.Buffered(); got != 0 {
		t.Errorf("Buffered after drain = %d, want 0", got)
	}
}

func TestRingTryWriteAllOrNothing(t *testing.T) {
	t.Parallel()

	prod, cons := NewRing(16)
	if !prod.TryWrite(make([]byte, 12)) {
		t.Fatal("first write rejected")
	}
	if prod.TryWrite(make([]byte, 8)) {
		t.Error("oversized write accepted; want rejection with no partial copy")
	}
	if got := prod.Free(); got != 4 {
		t.Errorf("Free = %d, want 4 (rejected write must not consume space)", got)
	}
	if got := cons.Buffered(); got != 12 {
		t.Errorf("Buffered = %d, want 12", got)
	}
	if !prod.TryWrite(make([]byte, 4)) {
		t.Error("exact-fit write rejected")
	}
	if got := prod.Free(); got != 0 {
		t.Errorf("Free = %d, want 0", got)
	}
}

func TestRingWrapAround(t *testing.T) {
	t.Parallel()

	prod, cons := NewRing(8)
	if !prod.TryWrite([]byte{1, 2, 3, 4, 5, 6}) {
		t.Fatal("initial write rejected")
	}
	buf := make([]byte, 4)
	if n := cons.Read(buf); n != 4 {
		t.Fatalf("Read = %d bytes, want 4", n)
	}

	// Five more bytes span the end of the backing array.
	if !prod.TryWrite([]byte{7, 8, 9, 10, 11}) {
		t.Fatal("wrapping write rejected")
	}
	rest := make([]byte, 8)
	n := cons.Read(rest)
	want := []byte{5, 6, 7, 8, 9, 10, 11}
	if !bytes.Equal(rest[:n], want) {
		t.Errorf("Read = %v, want %v", rest[:n], want)
	}
}

func TestRingReadEmpty(t *testing.T) {
	t.Parallel()

	_, cons := NewRing(8)
	if n := cons.Read(make([]byte, 4)); n != 0 {
		t.Errorf("Read from empty ring = %d bytes, want 0", n)
	}
}

func TestRingRejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("NewRing(0) did not panic")
		}
	}()
	NewRing(0)
}

func TestRingConcurrentTransfer(t *testing.T) {
	t.Parallel()

	const total = 64 * 1024
	prod, cons := NewRing(256)

	src := make([]byte, total)
	for i := range src {
		src[i] = byte(i)
	}

	go func() {
		sizes := []int{1, 3, 16, 61, 128}
		off := 0
		for i := 0; off < total; i++ {
			n := sizes[i%len(sizes)]
			if off+n > total {
				n = total - off
			}
			for !prod.TryWrite(src[off : off+n]) {
				runtime.Gosched()
			}
			off += n
		}
	}()

	got := make([]byte, 0, total)
	buf := make([]byte, 97)
	deadline := time.Now().Add(10 * time.Second)
	for len(got) < total {
		if time.Now().After(deadline) {
			t.Fatalf("transfer stalled at %d of %d bytes", len(got), total)
		}
		n := cons.Read(buf)
		if n == 0 {
			runtime.Gosched()
			continue
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, src) {
		t.Error("transferred bytes differ from the source")
	}
}
