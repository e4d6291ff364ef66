//go:build unix

package store

import "syscall"

// mmapReadOnly maps a file read-only, private. The fd may be closed after
// mapping returns; the mapping stays valid until munmap.
func mmapReadOnly(fd uintptr, size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return syscall.Mmap(int(fd), 0, size, syscall.PROT_READ, syscall.MAP_PRIVATE)
}

// mmapReadWrite maps a file read-write, private: writes (the in-place
// sort) are visible to this process only and are never flushed back to
// the backing file — fine here since the file is unlinked and discarded
// once its fd is closed anyway.
func mmapReadWrite(fd uintptr, size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return syscall.Mmap(int(fd), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE)
}

func munmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return syscall.Munmap(data)
}
