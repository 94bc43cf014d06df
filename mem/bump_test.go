package mem_test

import (
	"testing"

	"github.com/momentics/aioloop/mem"
)

func TestBumpNeverOverlaps(t *testing.T) {
	buf := make([]byte, 256)
	b, k := mem.Init(buf)
	if k != 0 {
		t.Fatalf("Init failed: %v", k)
	}
	total := 0
	for {
		chunk := b.Alloc(8)
		if chunk == nil {
			break
		}
		// buf starts zeroed and every earlier chunk was filled with 0xAB,
		// so a nonzero byte here means this chunk overlaps an earlier one.
		for i := range chunk {
			if chunk[i] != 0 {
				t.Fatalf("allocation overlaps an earlier one at byte %d of chunk", i)
			}
			chunk[i] = 0xAB
		}
		total += len(chunk)
	}
	if total > len(buf) {
		t.Fatalf("total allocated %d exceeds capacity %d", total, len(buf))
	}
}

func TestBumpNilBeyondCapacity(t *testing.T) {
	buf := make([]byte, 64)
	b, _ := mem.Init(buf)
	if b.Alloc(32) == nil {
		t.Fatal("expected first alloc to succeed")
	}
	if b.Alloc(1<<20) != nil {
		t.Fatal("expected allocation far beyond capacity to return nil")
	}
}

func TestBumpReset(t *testing.T) {
	buf := make([]byte, 64)
	b, _ := mem.Init(buf)
	b.Alloc(32)
	b.Reset()
	if b.Alloc(32) == nil {
		t.Fatal("expected capacity to be available again after Reset")
	}
}
