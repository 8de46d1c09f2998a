// Package profiling captures pprof data for one-shot CLI runs, mainly
// for tuning index build time and fusion cost against large catalogs.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Session holds profiling state for a single command invocation.
// Either path may be empty, in which case that profile is skipped.
type Session struct {
	cpu      *os.File
	heapPath string
}

// Start begins CPU profiling to cpuPath and remembers heapPath for
// Stop. A Session with both paths empty is valid and does nothing.
func Start(cpuPath, heapPath string) (*Session, error) {
	s := &Session{heapPath: heapPath}
	if cpuPath == "" {
		return s, nil
	}

	f, err := os.Create(cpuPath)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	s.cpu = f
	return s, nil
}

// Stop ends CPU profiling and writes the heap snapshot if a heap path
// was configured. Safe to call on a Session that never started a
// profile.
func (s *Session) Stop() error {
	if s.cpu != nil {
		pprof.StopCPUProfile()
		_ = s.cpu.Close()
		s.cpu = nil
	}
	if s.heapPath == "" {
		return nil
	}

	f, err := os.Create(s.heapPath)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect before snapshotting so the profile reflects live data.
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}

// HeapInUse returns the bytes of live heap memory.
func HeapInUse() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapInuse
}

// FormatBytes renders a byte count in human-readable form.
func FormatBytes(n uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
