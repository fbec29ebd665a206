// Package petest builds synthetic mapped PE images for tests.
package petest

import "encoding/binary"

// Extended header sizes for the two PE flavours.
const (
	ExtendedHeaderSize64 = 264
	ExtendedHeaderSize32 = 248
)

// Section describes one section-table entry and the bytes mapped at its RVA.
type Section struct {
	Name            string // Truncated to 8 bytes, NUL padded.
	VirtualAddress  uint32
	VirtualSize     uint32
	SizeOfRawData   uint32
	Characteristics uint32
	Data            []byte
}

// Image is the layout of a synthetic image as the loader would map it.
type Image struct {
	// Lfanew is the extended header offset; zero means 0x80.
	Lfanew int32
	// ExtendedHeaderSize is sizeof(IMAGE_NT_HEADERS); zero means PE32+.
	ExtendedHeaderSize int
	// NumberOfSections overrides the header count when non-zero.
	NumberOfSections uint16
	// SizeOfImage overrides the mapped size when non-zero.
	SizeOfImage uint32
	Sections    []Section
}

// Build lays the image out in memory.
func (img Image) Build() []byte {
	lfanew := img.Lfanew
	if lfanew == 0 {
		lfanew = 0x80
	}
	extSize := img.ExtendedHeaderSize
	if extSize == 0 {
		extSize = ExtendedHeaderSize64
	}
	count := img.NumberOfSections
	if count == 0 {
		count = uint16(len(img.Sections))
	}

	tableOffset := int(lfanew) + extSize
	size := uint32(max(tableOffset+len(img.Sections)*40, 0x40))
	for _, s := range img.Sections {
		size = max(size, s.VirtualAddress+s.VirtualSize, s.VirtualAddress+uint32(len(s.Data)))
	}
	if img.SizeOfImage != 0 {
		size = img.SizeOfImage
	}

	mem := make([]byte, size)
	put := func(off int, b []byte) {
		if off >= 0 && off < len(mem) {
			copy(mem[off:], b)
		}
	}
	u16 := func(off int, v uint16) {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		put(off, b[:])
	}
	u32 := func(off int, v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		put(off, b[:])
	}

	put(0, []byte("MZ"))
	u32(0x3C, uint32(lfanew))

	nt := int(lfanew)
	put(nt, []byte("PE\x00\x00"))
	u16(nt+6, count)
	u32(nt+24+56, size)

	for i, s := range img.Sections {
		off := tableOffset + i*40
		var name [8]byte
		copy(name[:], s.Name)
		put(off, name[:])
		u32(off+8, s.VirtualSize)
		u32(off+12, s.VirtualAddress)
		u32(off+16, s.SizeOfRawData)
		u32(off+36, s.Characteristics)
		put(int(s.VirtualAddress), s.Data)
	}

	return mem
}
