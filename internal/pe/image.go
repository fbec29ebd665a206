package pe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrNoImage is returned when the process has no loaded base image.
	ErrNoImage = errors.New("未找到当前进程的镜像基址")
	// ErrUnsupported is returned on platforms without a PE loader.
	ErrUnsupported = fmt.Errorf("当前平台不支持读取进程镜像: %w", errors.ErrUnsupported)
	// ErrHeaderOffset is returned when e_lfanew does not point into the image.
	ErrHeaderOffset = errors.New("扩展头偏移无效")
	// ErrTruncated is returned when the headers or section table run past the image.
	ErrTruncated = errors.New("镜像头数据不完整")
)

// SectionHeader is one decoded IMAGE_SECTION_HEADER record.
type SectionHeader struct {
	Index           int
	Name            string
	VirtualSize     uint32
	VirtualAddress  uint32 // RVA.
	SizeOfRawData   uint32
	Characteristics uint32
}

// Image is a read-only view of a mapped PE image.
// The extended header offset and section count are resolved once by NewImage.
type Image struct {
	base        uintptr
	mem         []byte
	ntOffset    int
	tableOffset int
	count       int
}

// NewImage interprets mem as a PE image mapped at base.
// Only the fields needed to reach the section table are checked.
func NewImage(base uintptr, mem []byte, layout Layout) (*Image, error) {
	if len(mem) < dosHeaderSize {
		return nil, fmt.Errorf("基础头需要 %d 字节, 实际 %d 字节: %w", dosHeaderSize, len(mem), ErrTruncated)
	}

	lfanew := int32(binary.LittleEndian.Uint32(mem[lfanewOffset:]))
	if lfanew < dosHeaderSize || lfanew >= maxHeaderOffset || int(lfanew) >= len(mem) {
		return nil, fmt.Errorf("e_lfanew = 0x%X: %w", lfanew, ErrHeaderOffset)
	}

	ntOffset := int(lfanew)
	tableOffset := ntOffset + layout.ExtendedHeaderSize
	if tableOffset > len(mem) || ntOffset+numberOfSectionsOffset+2 > len(mem) {
		return nil, fmt.Errorf("扩展头结束于 0x%X, 镜像仅 0x%X 字节: %w", tableOffset, len(mem), ErrTruncated)
	}

	count := int(binary.LittleEndian.Uint16(mem[ntOffset+numberOfSectionsOffset:]))
	if end := tableOffset + count*SectionHeaderSize; end > len(mem) {
		return nil, fmt.Errorf("节区表 (%d 项) 结束于 0x%X, 镜像仅 0x%X 字节: %w", count, end, len(mem), ErrTruncated)
	}

	return &Image{
		base:        base,
		mem:         mem,
		ntOffset:    ntOffset,
		tableOffset: tableOffset,
		count:       count,
	}, nil
}

// FromBytes interprets mem as a PE image mapped at the address of its first byte.
func FromBytes(mem []byte, layout Layout) (*Image, error) {
	if len(mem) == 0 {
		return nil, fmt.Errorf("镜像为空: %w", ErrTruncated)
	}
	return NewImage(uintptr(unsafe.Pointer(unsafe.SliceData(mem))), mem, layout)
}

// Base returns the address the image is mapped at.
func (img *Image) Base() uintptr {
	return img.base
}

// Size returns the number of mapped bytes covered by the view.
func (img *Image) Size() int {
	return len(img.mem)
}

// ExtendedHeaderOffset returns e_lfanew.
func (img *Image) ExtendedHeaderOffset() int {
	return img.ntOffset
}

// SectionTableOffset returns the offset of the first section header.
func (img *Image) SectionTableOffset() int {
	return img.tableOffset
}

// NumSections returns the section count read from the file header.
func (img *Image) NumSections() int {
	return img.count
}

// Header decodes the i-th section-table record. It panics if i is out of range.
func (img *Image) Header(i int) SectionHeader {
	if i < 0 || i >= img.count {
		panic(fmt.Sprintf("pe: section index %d out of range [0, %d)", i, img.count))
	}

	off := img.tableOffset + i*SectionHeaderSize
	raw := img.mem[off : off+SectionHeaderSize]

	return SectionHeader{
		Index:           i,
		Name:            DecodeName(raw[:nameSize]),
		VirtualSize:     binary.LittleEndian.Uint32(raw[virtualSizeOffset:]),
		VirtualAddress:  binary.LittleEndian.Uint32(raw[virtualAddressOffset:]),
		SizeOfRawData:   binary.LittleEndian.Uint32(raw[sizeOfRawDataOffset:]),
		Characteristics: binary.LittleEndian.Uint32(raw[characteristicsOffset:]),
	}
}

// Slice returns the mapped bytes [rva, rva+size), clipped to the image.
func (img *Image) Slice(rva, size uint32) []byte {
	start := uint64(rva)
	if start >= uint64(len(img.mem)) {
		return nil
	}
	end := min(start+uint64(size), uint64(len(img.mem)))
	return img.mem[start:end:end]
}

// SectionData returns the mapped bytes of a section.
func (img *Image) SectionData(h SectionHeader) []byte {
	return img.Slice(h.VirtualAddress, MappedSize(h.VirtualSize, h.SizeOfRawData))
}

// MappedSize returns the in-memory size of a section. Some linkers leave
// VirtualSize zero, in which case the raw data size is used.
func MappedSize(virtualSize, rawSize uint32) uint32 {
	if virtualSize == 0 {
		return rawSize
	}
	return virtualSize
}

// DecodeName returns the section name up to the first NUL, or all bytes if
// there is none. Bytes are copied verbatim without encoding checks.
func DecodeName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}
