package store

import "os"

// CreateUnlinked creates a temporary file and immediately unlinks it, so
// the OS reclaims its storage the moment every open handle is closed —
// regardless of how the process exits. The returned *os.File remains
// valid for writes, reads, and mmap via its fd.
func CreateUnlinked(dir, pattern string) (*os.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// MapReadOnly maps the full extent of an open file read-only, private.
func MapReadOnly(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return mmapReadOnly(f.Fd(), int(info.Size()))
}

// MapReadWrite maps the full extent of an open file read-write, private.
func MapReadWrite(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return mmapReadWrite(f.Fd(), int(info.Size()))
}

// Unmap releases a mapping created by MapReadOnly or MapReadWrite.
func Unmap(data []byte) error { return munmap(data) }
