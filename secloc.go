// Package secloc locates the sections of the running executable's loaded
// image by reading its PE headers straight from memory.
//
//	loc, err := secloc.New()
//	if err != nil {
//		return err
//	}
//	for s := range loc.All() {
//		fmt.Printf("%d %s 0x%X %d\n", s.Index, s.Name, s.VirtualAddress, s.DataSize)
//	}
package secloc

import (
	"iter"

	"github.com/ZacharyZcR/secloc/internal/pe"
)

// Errors returned by New and FromMemory.
var (
	ErrNoImage      = pe.ErrNoImage
	ErrUnsupported  = pe.ErrUnsupported
	ErrHeaderOffset = pe.ErrHeaderOffset
	ErrTruncated    = pe.ErrTruncated
)

// Section is a snapshot of one section-table entry. It holds no reference to
// the image or the Locator that produced it.
type Section struct {
	// Index is the position in the section table.
	Index int
	// Name is the 8-byte name field up to its first NUL.
	Name string
	// VirtualAddress is where the section's data starts in memory.
	VirtualAddress uintptr
	// DataSize is the raw data size declared in the header.
	DataSize uint32

	VirtualSize     uint32
	Characteristics uint32
}

// CodeCave is a run of padding bytes inside a mapped section.
type CodeCave = pe.CodeCave

// Permissions returns the section's memory flags as "RWX" with '-' for
// missing flags.
func (s Section) Permissions() string {
	return pe.Permissions(s.Characteristics)
}

// Size returns the number of bytes the section occupies in memory.
func (s Section) Size() uint32 {
	return pe.MappedSize(s.VirtualSize, s.DataSize)
}

// Contains reports whether addr falls inside the section's memory.
func (s Section) Contains(addr uintptr) bool {
	return addr >= s.VirtualAddress && addr-s.VirtualAddress < uintptr(s.Size())
}

// Locator enumerates the sections of one mapped image. The header offsets are
// resolved once at construction; a Locator is immutable and safe for
// concurrent use.
type Locator struct {
	img *pe.Image
}

// New returns a Locator for the current process's executable image.
// It fails with ErrUnsupported on platforms other than Windows.
func New() (*Locator, error) {
	img, err := pe.CurrentImage()
	if err != nil {
		return nil, err
	}
	return &Locator{img: img}, nil
}

// FromMemory returns a Locator for a PE image already laid out in mem the way
// the loader maps it, with the native header layout. Section addresses are
// relative to &mem[0]. mem must not be modified while the Locator is in use.
func FromMemory(mem []byte) (*Locator, error) {
	img, err := pe.FromBytes(mem, pe.Native)
	if err != nil {
		return nil, err
	}
	return &Locator{img: img}, nil
}

// Base returns the address the image is mapped at.
func (l *Locator) Base() uintptr {
	return l.img.Base()
}

// Count returns the number of entries in the section table.
func (l *Locator) Count() int {
	return l.img.NumSections()
}

// All returns an iterator over the sections in table order. Entries are
// decoded lazily, so stopping early skips the rest of the table.
func (l *Locator) All() iter.Seq[Section] {
	return func(yield func(Section) bool) {
		for i := 0; i < l.img.NumSections(); i++ {
			if !yield(l.section(i)) {
				return
			}
		}
	}
}

// Visit calls fn for each section in table order until fn returns false.
func (l *Locator) Visit(fn func(Section) bool) {
	l.All()(fn)
}

// Sections returns every section in table order.
func (l *Locator) Sections() []Section {
	sections := make([]Section, 0, l.img.NumSections())
	for s := range l.All() {
		sections = append(sections, s)
	}
	return sections
}

// Find returns the first section whose name is exactly name.
func (l *Locator) Find(name string) (Section, bool) {
	for s := range l.All() {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Containing returns the first section whose memory holds addr.
func (l *Locator) Containing(addr uintptr) (Section, bool) {
	for s := range l.All() {
		if s.Contains(addr) {
			return s, true
		}
	}
	return Section{}, false
}

// Data returns the mapped bytes of s, clipped to the image. The slice aliases
// live image memory and must not be written to.
func (l *Locator) Data(s Section) []byte {
	if s.VirtualAddress < l.img.Base() {
		return nil
	}
	rva := s.VirtualAddress - l.img.Base()
	if rva > uintptr(^uint32(0)) {
		return nil
	}
	return l.img.Slice(uint32(rva), s.Size())
}

// Entropy returns the Shannon entropy of the section's mapped bytes.
func (l *Locator) Entropy(s Section) float64 {
	return pe.CalculateEntropy(l.Data(s))
}

// CodeCaves returns runs of 0x00 or 0xCC at least minSize bytes long in the
// mapped sections.
func (l *Locator) CodeCaves(minSize uint32) []CodeCave {
	return l.img.FindCodeCaves(minSize)
}

func (l *Locator) section(i int) Section {
	h := l.img.Header(i)

	return Section{
		Index:           h.Index,
		Name:            h.Name,
		VirtualAddress:  l.img.Base() + uintptr(h.VirtualAddress),
		DataSize:        h.SizeOfRawData,
		VirtualSize:     h.VirtualSize,
		Characteristics: h.Characteristics,
	}
}
