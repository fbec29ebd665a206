package pe

import "fmt"

// CodeCave is a run of padding bytes inside a mapped section.
type CodeCave struct {
	Section  string  // Section name.
	RVA      uint32  // Relative Virtual Address.
	Address  uintptr // Absolute address in the process.
	Size     uint32  // Run length in bytes.
	FillByte byte    // Fill pattern (0x00 or 0xCC).
}

// String formats the cave for listings.
func (c CodeCave) String() string {
	return fmt.Sprintf("%s+0x%X (0x%X, %d 字节, 0x%02X)", c.Section, c.RVA, c.Address, c.Size, c.FillByte)
}

// FindCodeCaves scans every section's mapped bytes for runs of 0x00 or 0xCC
// at least minSize bytes long. Nothing is written.
func (img *Image) FindCodeCaves(minSize uint32) []CodeCave {
	var caves []CodeCave

	for i := 0; i < img.count; i++ {
		h := img.Header(i)
		caves = append(caves, img.findInSection(h, img.SectionData(h), minSize)...)
	}

	return caves
}

func (img *Image) findInSection(h SectionHeader, data []byte, minSize uint32) []CodeCave {
	var caves []CodeCave
	caveStart := -1
	var fillByte byte

	for i, b := range data {
		if b == 0x00 || b == 0xCC {
			if caveStart == -1 {
				caveStart = i
				fillByte = b
			} else if b != fillByte {
				// Different fill byte, close the run and start another.
				if uint32(i-caveStart) >= minSize {
					caves = append(caves, img.newCodeCave(h, caveStart, i, fillByte))
				}
				caveStart = i
				fillByte = b
			}
			continue
		}

		if caveStart != -1 && uint32(i-caveStart) >= minSize {
			caves = append(caves, img.newCodeCave(h, caveStart, i, fillByte))
		}
		caveStart = -1
	}

	// Run reaching the end of the section.
	if caveStart != -1 && uint32(len(data)-caveStart) >= minSize {
		caves = append(caves, img.newCodeCave(h, caveStart, len(data), fillByte))
	}

	return caves
}

func (img *Image) newCodeCave(h SectionHeader, start, end int, fillByte byte) CodeCave {
	rva := h.VirtualAddress + uint32(start)

	return CodeCave{
		Section:  h.Name,
		RVA:      rva,
		Address:  img.base + uintptr(rva),
		Size:     uint32(end - start),
		FillByte: fillByte,
	}
}
