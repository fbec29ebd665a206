//go:build windows

package pe

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/windows"
)

// CurrentImage returns a view of the executable image the loader mapped for
// this process. The view stays valid for the lifetime of the process.
func CurrentImage() (*Image, error) {
	peb := windows.RtlGetCurrentPeb()
	if peb == nil || peb.ImageBaseAddress == 0 {
		return nil, ErrNoImage
	}

	base := peb.ImageBaseAddress
	return NewImage(base, mapImage(base), Native)
}

// mapImage turns the loader's mapping at base into a byte slice covering
// SizeOfImage bytes. It is the only place that dereferences raw image memory;
// every other read goes through the bounds-checked slice.
func mapImage(base uintptr) []byte {
	ptr := unsafe.Pointer(base)

	dos := unsafe.Slice((*byte)(ptr), dosHeaderSize)
	lfanew := int32(binary.LittleEndian.Uint32(dos[lfanewOffset:]))
	if lfanew < dosHeaderSize || lfanew >= maxHeaderOffset {
		// NewImage rejects the offset.
		return dos
	}

	nt := unsafe.Slice((*byte)(unsafe.Add(ptr, int(lfanew))), sizeOfImageOffset+4)
	size := binary.LittleEndian.Uint32(nt[sizeOfImageOffset:])
	if uint64(size) < uint64(lfanew)+uint64(len(nt)) {
		return unsafe.Slice((*byte)(ptr), int(lfanew)+len(nt))
	}

	return unsafe.Slice((*byte)(ptr), int(size))
}
