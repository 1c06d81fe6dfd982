package core

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

var (
	rar4Signature = []byte("Rar!\x1a\x07\x00")
	rar5Signature = []byte("Rar!\x1a\x07\x01\x00")
)

// RAR4 main header flags.
const (
	rar4FlagVolume      = 0x0001
	rar4FlagFirstVolume = 0x0100
)

// RAR5 main archive header flags.
const (
	rar5FlagVolume       = 0x0001
	rar5FlagVolumeNumber = 0x0002
)

// isNonFirstVolume inspects the archive's main header and reports whether
// it declares itself a continuation volume of a multi-part set. Both RAR4
// (volume flag set, first-volume flag clear) and RAR5 (volume number field
// present and greater than zero) encodings are recognized. Anything that
// is not a readable RAR header reports false; format problems are left to
// the extraction backend.
func isNonFirstVolume(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sig := make([]byte, 8)
	if _, err := io.ReadFull(f, sig); err != nil {
		return false
	}
	switch {
	case bytes.HasPrefix(sig, rar4Signature):
		// The signature is seven bytes; sig[7] already belongs to the
		// next block header.
		return rar4NonFirst(sig[7], f)
	case bytes.Equal(sig, rar5Signature):
		return rar5NonFirst(bufio.NewReader(f))
	default:
		return false
	}
}

// rar4NonFirst reads the RAR4 main header block: CRC u16, type u8,
// flags u16, size u16, all little-endian.
func rar4NonFirst(first byte, r io.Reader) bool {
	hdr := make([]byte, 7)
	hdr[0] = first
	if _, err := io.ReadFull(r, hdr[1:]); err != nil {
		return false
	}
	if hdr[2] != 0x73 { // main archive header
		return false
	}
	flags := binary.LittleEndian.Uint16(hdr[3:5])
	return flags&rar4FlagVolume != 0 && flags&rar4FlagFirstVolume == 0
}

// rar5NonFirst walks the RAR5 main archive header: CRC32, then varint
// header size, type, header flags, optional extra/data sizes, archive
// flags and the optional volume number.
func rar5NonFirst(r *bufio.Reader) bool {
	if _, err := io.CopyN(io.Discard, r, 4); err != nil {
		return false
	}
	if _, err := readRarVarint(r); err != nil { // header size
		return false
	}
	typ, err := readRarVarint(r)
	if err != nil || typ != 1 { // main archive header
		return false
	}
	headerFlags, err := readRarVarint(r)
	if err != nil {
		return false
	}
	if headerFlags&0x0001 != 0 { // extra area size
		if _, err := readRarVarint(r); err != nil {
			return false
		}
	}
	if headerFlags&0x0002 != 0 { // data area size
		if _, err := readRarVarint(r); err != nil {
			return false
		}
	}
	archiveFlags, err := readRarVarint(r)
	if err != nil {
		return false
	}
	if archiveFlags&rar5FlagVolumeNumber == 0 {
		return false
	}
	volume, err := readRarVarint(r)
	return err == nil && volume > 0
}

// readRarVarint decodes the RAR5 variable-length integer: little-endian
// base-128 with a continuation bit, at most ten bytes.
func readRarVarint(r io.ByteReader) (uint64, error) {
	var v uint64
	for i := 0; i < 10; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return v, nil
}
