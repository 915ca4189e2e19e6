package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// D64Size is the byte size of a standard 35-track image without error info.
const D64Size = 174848

// WriteDiskImage fills the target path with size bytes of a repeating
// pattern, creating parent directories. A size <= 0 writes a full D64.
func WriteDiskImage(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = D64Size
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(remaining, int64(chunkSize))
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteTree creates every relative path below root as a small file.
func WriteTree(t testing.TB, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		WriteDiskImage(t, filepath.Join(root, filepath.FromSlash(p)), 16)
	}
}
