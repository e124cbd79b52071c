//go:build !barrier_cachelinesize_128

package opt

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize_ is used in structure padding to prevent false sharing.
// It's derived from the `golang.org/x/sys/cpu` pad for the target arch.
const CacheLineSize_ = unsafe.Sizeof(cpu.CacheLinePad{})
