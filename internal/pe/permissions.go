package pe

import dpe "debug/pe"

// Permissions renders the memory flags of a section as "RWX", with '-' for
// each missing flag.
func Permissions(c uint32) string {
	perms := [3]byte{'-', '-', '-'}

	if c&dpe.IMAGE_SCN_MEM_READ != 0 {
		perms[0] = 'R'
	}
	if c&dpe.IMAGE_SCN_MEM_WRITE != 0 {
		perms[1] = 'W'
	}
	if c&dpe.IMAGE_SCN_MEM_EXECUTE != 0 {
		perms[2] = 'X'
	}

	return string(perms[:])
}
