package secloc

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/secloc/internal/pe"
	"github.com/ZacharyZcR/secloc/internal/pe/petest"
)

const testBase = uintptr(0x00400000)

func testImage() petest.Image {
	return petest.Image{
		Sections: []petest.Section{
			{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x30, SizeOfRawData: 0x200, Characteristics: 0x60000020},
			{Name: ".data", VirtualAddress: 0x2000, VirtualSize: 0x10, SizeOfRawData: 0x200, Characteristics: 0xC0000040},
			{Name: ".rdata", VirtualAddress: 0x3000, VirtualSize: 0x08, SizeOfRawData: 0x200, Characteristics: 0x40000040},
		},
	}
}

func newTestLocator(t *testing.T, layout petest.Image) *Locator {
	t.Helper()

	img, err := pe.NewImage(testBase, layout.Build(), pe.Layout64)
	require.NoError(t, err)
	return &Locator{img: img}
}

func TestSections(t *testing.T) {
	loc := newTestLocator(t, testImage())

	want := []Section{
		{Index: 0, Name: ".text", VirtualAddress: testBase + 0x1000, DataSize: 0x200, VirtualSize: 0x30, Characteristics: 0x60000020},
		{Index: 1, Name: ".data", VirtualAddress: testBase + 0x2000, DataSize: 0x200, VirtualSize: 0x10, Characteristics: 0xC0000040},
		{Index: 2, Name: ".rdata", VirtualAddress: testBase + 0x3000, DataSize: 0x200, VirtualSize: 0x08, Characteristics: 0x40000040},
	}

	got := loc.Sections()
	assert.Equal(t, want, got)
	assert.Len(t, got, loc.Count())
	assert.Equal(t, testBase, loc.Base())

	for i, s := range got {
		assert.Equal(t, i, s.Index)
	}
}

func TestSectionsEmptyTable(t *testing.T) {
	loc := newTestLocator(t, petest.Image{})

	assert.Empty(t, loc.Sections())
	_, ok := loc.Find(".text")
	assert.False(t, ok)
}

func TestFind(t *testing.T) {
	loc := newTestLocator(t, testImage())

	tests := []struct {
		name      string
		query     string
		wantFound bool
		wantIndex int
	}{
		{name: "Middle entry", query: ".data", wantFound: true, wantIndex: 1},
		{name: "First entry", query: ".text", wantFound: true, wantIndex: 0},
		{name: "Last entry", query: ".rdata", wantFound: true, wantIndex: 2},
		{name: "Missing", query: ".bss", wantFound: false},
		{name: "Prefix is not a match", query: ".dat", wantFound: false},
		{name: "Empty name", query: "", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := loc.Find(tt.query)
			require.Equal(t, tt.wantFound, ok)
			if !tt.wantFound {
				assert.Equal(t, Section{}, s)
				return
			}
			assert.Equal(t, tt.wantIndex, s.Index)
			assert.Equal(t, tt.query, s.Name)
		})
	}
}

func TestFindMatchesSectionsScan(t *testing.T) {
	layout := petest.Image{
		Sections: []petest.Section{
			{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x10},
			{Name: "abcdefgh", VirtualAddress: 0x2000, VirtualSize: 0x10},
			{Name: ".text", VirtualAddress: 0x3000, VirtualSize: 0x10},
			{Name: "\xff\xfe", VirtualAddress: 0x4000, VirtualSize: 0x10},
		},
	}
	loc := newTestLocator(t, layout)
	all := loc.Sections()

	for _, name := range []string{".text", "abcdefgh", "\xff\xfe", ".none"} {
		got, ok := loc.Find(name)
		i := slices.IndexFunc(all, func(s Section) bool { return s.Name == name })

		if i < 0 {
			assert.False(t, ok, name)
			continue
		}
		require.True(t, ok, name)
		assert.Equal(t, all[i], got, name)
	}

	first, _ := loc.Find(".text")
	assert.Equal(t, 0, first.Index, "duplicate names resolve to the first entry")
}

func TestAllStopsEarly(t *testing.T) {
	loc := newTestLocator(t, testImage())

	for k := 0; k < loc.Count(); k++ {
		var visited []int
		for s := range loc.All() {
			visited = append(visited, s.Index)
			if s.Index == k {
				break
			}
		}

		want := make([]int, k+1)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, visited)
	}
}

func TestVisit(t *testing.T) {
	loc := newTestLocator(t, testImage())

	var all []int
	loc.Visit(func(s Section) bool {
		all = append(all, s.Index)
		return true
	})
	assert.Equal(t, []int{0, 1, 2}, all)

	calls := 0
	loc.Visit(func(s Section) bool {
		calls++
		return s.Name != ".data"
	})
	assert.Equal(t, 2, calls)
}

func TestContaining(t *testing.T) {
	loc := newTestLocator(t, testImage())

	tests := []struct {
		name      string
		addr      uintptr
		wantFound bool
		wantName  string
	}{
		{name: "Section start", addr: testBase + 0x1000, wantFound: true, wantName: ".text"},
		{name: "Last byte", addr: testBase + 0x102F, wantFound: true, wantName: ".text"},
		{name: "One past end", addr: testBase + 0x1030, wantFound: false},
		{name: "Inside .rdata", addr: testBase + 0x3004, wantFound: true, wantName: ".rdata"},
		{name: "Headers", addr: testBase, wantFound: false},
		{name: "Below image", addr: testBase - 1, wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := loc.Containing(tt.addr)
			require.Equal(t, tt.wantFound, ok)
			if ok {
				assert.Equal(t, tt.wantName, s.Name)
			}
		})
	}
}

func TestData(t *testing.T) {
	layout := testImage()
	layout.Sections[1].Data = []byte("0123456789abcdef")
	loc := newTestLocator(t, layout)

	s, ok := loc.Find(".data")
	require.True(t, ok)
	assert.Equal(t, []byte("0123456789abcdef"), loc.Data(s))

	assert.Nil(t, loc.Data(Section{VirtualAddress: testBase - 0x10, VirtualSize: 0x10}))
	assert.Nil(t, loc.Data(Section{VirtualAddress: testBase + 0x10000, VirtualSize: 0x10}))
}

func TestEntropyAndCaves(t *testing.T) {
	layout := testImage()
	layout.Sections[0].Data = append([]byte{0xC3}, make([]byte, 0x2F)...)
	loc := newTestLocator(t, layout)

	text, ok := loc.Find(".text")
	require.True(t, ok)
	assert.InDelta(t, pe.CalculateEntropy(loc.Data(text)), loc.Entropy(text), 1e-9)

	caves := loc.CodeCaves(0x20)
	require.NotEmpty(t, caves)
	assert.Equal(t, ".text", caves[0].Section)
	assert.Equal(t, testBase+0x1001, caves[0].Address)
	assert.Equal(t, uint32(0x2F), caves[0].Size)
}

func TestSectionPermissions(t *testing.T) {
	loc := newTestLocator(t, testImage())

	got := make(map[string]string)
	for s := range loc.All() {
		got[s.Name] = s.Permissions()
	}
	assert.Equal(t, map[string]string{".text": "R-X", ".data": "RW-", ".rdata": "R--"}, got)
}

func TestSectionIsSnapshot(t *testing.T) {
	mem := testImage().Build()
	img, err := pe.NewImage(testBase, mem, pe.Layout64)
	require.NoError(t, err)
	loc := &Locator{img: img}

	before, ok := loc.Find(".text")
	require.True(t, ok)

	// Overwrite the name field of the first header.
	copy(mem[img.SectionTableOffset():], "XXXXXXXX")

	assert.Equal(t, ".text", before.Name)
	after := loc.Sections()[0]
	assert.Equal(t, "XXXXXXXX", after.Name)
}

func TestFromMemory(t *testing.T) {
	layout := testImage()
	layout.ExtendedHeaderSize = pe.Native.ExtendedHeaderSize
	mem := layout.Build()

	loc, err := FromMemory(mem)
	require.NoError(t, err)

	s, ok := loc.Find(".rdata")
	require.True(t, ok)
	assert.Equal(t, uintptr(0x3000), s.VirtualAddress-loc.Base())
	assert.Len(t, loc.Data(s), 8)
}

func TestFromMemoryErrors(t *testing.T) {
	_, err := FromMemory(nil)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = FromMemory(make([]byte, 0x200))
	assert.ErrorIs(t, err, ErrHeaderOffset)
}
