package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rar4Header builds a signature plus main header block with the given
// flags: CRC (unchecked), type 0x73, flags, header size.
func rar4Header(flags uint16) []byte {
	b := append([]byte(nil), rar4Signature...)
	return append(b, 0x00, 0x00, 0x73, byte(flags), byte(flags>>8), 0x0d, 0x00)
}

// rar5Header builds a signature plus a minimal main archive header with
// the given archive flags and, when the volume-number flag is set, the
// volume number.
func rar5Header(archiveFlags byte, volume byte) []byte {
	b := append([]byte(nil), rar5Signature...)
	// Header CRC32 is not checked by the probe.
	b = append(b, 0x00, 0x00, 0x00, 0x00)
	// Body: type 1 (main archive header), empty header flags, archive
	// flags, optional volume number.
	body := []byte{0x01, 0x00, archiveFlags}
	if archiveFlags&rar5FlagVolumeNumber != 0 {
		body = append(body, volume)
	}
	b = append(b, byte(len(body)))
	return append(b, body...)
}

func writeProbeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestIsNonFirstVolume_Rar4(t *testing.T) {
	continuation := writeProbeFile(t, "a.rar", rar4Header(rar4FlagVolume))
	assert.True(t, isNonFirstVolume(continuation))

	first := writeProbeFile(t, "b.rar", rar4Header(rar4FlagVolume|rar4FlagFirstVolume))
	assert.False(t, isNonFirstVolume(first))

	single := writeProbeFile(t, "c.rar", rar4Header(0))
	assert.False(t, isNonFirstVolume(single))
}

func TestIsNonFirstVolume_Rar5(t *testing.T) {
	continuation := writeProbeFile(t, "a.rar", rar5Header(rar5FlagVolume|rar5FlagVolumeNumber, 1))
	assert.True(t, isNonFirstVolume(continuation))

	// First volume of a RAR5 set: volume flag set, no volume number field.
	first := writeProbeFile(t, "b.rar", rar5Header(rar5FlagVolume, 0))
	assert.False(t, isNonFirstVolume(first))

	single := writeProbeFile(t, "c.rar", rar5Header(0, 0))
	assert.False(t, isNonFirstVolume(single))
}

func TestIsNonFirstVolume_NotRar(t *testing.T) {
	assert.False(t, isNonFirstVolume(writeProbeFile(t, "x.rar", []byte("plain text"))))
	assert.False(t, isNonFirstVolume(writeProbeFile(t, "y.rar", nil)))
	assert.False(t, isNonFirstVolume(writeProbeFile(t, "z.rar", rar4Signature)))
	assert.False(t, isNonFirstVolume(filepath.Join(t.TempDir(), "missing.rar")))
}

// A continuation volume whose name carries no .partN/.rNN hint is still
// recognized by its header and refused up front.
func TestExtract_HeaderMarkedVolumeRejected(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "innocuous-name.rar")
	require.NoError(t, os.WriteFile(p, rar4Header(rar4FlagVolume), 0o644))

	err := Extract(context.Background(), p, filepath.Join(dir, "out"), true)
	assert.ErrorIs(t, err, ErrMultiVolume)
}
