package opt

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/cpu"
)

func TestCacheLineSize(t *testing.T) {
	if CacheLineSize_ == 0 {
		t.Fatal("CacheLineSize_ is zero")
	}
	if CacheLineSize_&(CacheLineSize_-1) != 0 {
		t.Fatalf("CacheLineSize_ = %d, want a power of two", CacheLineSize_)
	}
	if pad := unsafe.Sizeof(cpu.CacheLinePad{}); CacheLineSize_ < pad {
		t.Logf("CacheLineSize_ %d below cpu pad %d", CacheLineSize_, pad)
	}
}
