// Package pe navigates the loaded PE image of the running process.
package pe

import "unsafe"

// Base header (IMAGE_DOS_HEADER) fields.
const (
	dosHeaderSize = 64
	lfanewOffset  = 0x3C // e_lfanew, int32.

	// maxHeaderOffset is the upper sanity bound for e_lfanew.
	maxHeaderOffset = 0x10000
)

// Extended header (IMAGE_NT_HEADERS) fields, relative to its start.
const (
	numberOfSectionsOffset = 4 + 2   // Signature, FileHeader.Machine.
	sizeOfImageOffset      = 24 + 56 // OptionalHeader.SizeOfImage, same for PE32 and PE32+.
)

// Section header (IMAGE_SECTION_HEADER) fields.
const (
	SectionHeaderSize = 40

	nameSize              = 8
	virtualSizeOffset     = 8
	virtualAddressOffset  = 12
	sizeOfRawDataOffset   = 16
	characteristicsOffset = 36
)

// Layout describes the fixed-size records of one PE flavour.
type Layout struct {
	// ExtendedHeaderSize is sizeof(IMAGE_NT_HEADERS): the section table
	// starts this many bytes after e_lfanew.
	ExtendedHeaderSize int
}

var (
	// Layout64 is the PE32+ layout.
	Layout64 = Layout{ExtendedHeaderSize: 4 + 20 + 240}
	// Layout32 is the PE32 layout.
	Layout32 = Layout{ExtendedHeaderSize: 4 + 20 + 224}
	// Native is the layout of images built for the current architecture.
	Native = layoutFor(unsafe.Sizeof(uintptr(0)))
)

func layoutFor(ptrSize uintptr) Layout {
	if ptrSize == 8 {
		return Layout64
	}
	return Layout32
}
