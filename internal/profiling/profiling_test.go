package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cpuPath := filepath.Join(dir, "cpu.prof")
	heapPath := filepath.Join(dir, "heap.prof")

	s, err := Start(cpuPath, heapPath)
	require.NoError(t, err)

	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum

	require.NoError(t, s.Stop())

	for _, path := range []string{cpuPath, heapPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestSessionNoPaths(t *testing.T) {
	s, err := Start("", "")
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}

func TestSessionBadCPUPath(t *testing.T) {
	_, err := Start(filepath.Join(t.TempDir(), "missing", "cpu.prof"), "")
	require.Error(t, err)
}

func TestHeapInUse(t *testing.T) {
	assert.Greater(t, HeapInUse(), uint64(0))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{2 * 1024 * 1024 * 1024, "2.00 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.n))
	}
}
