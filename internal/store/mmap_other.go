//go:build !unix

package store

import "fmt"

func mmapReadOnly(fd uintptr, size int) ([]byte, error) {
	return nil, fmt.Errorf("store: memory mapping is not supported on this platform")
}

func mmapReadWrite(fd uintptr, size int) ([]byte, error) {
	return nil, fmt.Errorf("store: memory mapping is not supported on this platform")
}

func munmap(data []byte) error {
	return nil
}
