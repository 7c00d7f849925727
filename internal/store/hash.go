package store

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

const hashChunk = 1 << 20

// FileHash identifies a file by its size plus MD5 of its first and last
// megabyte. It is cheap on large files and changes when the audio does.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()

	h := md5.New()
	fmt.Fprintf(h, "%d", size)
	if _, err := io.CopyN(h, f, min(size, hashChunk)); err != nil {
		return "", err
	}
	if size > hashChunk {
		if _, err := f.Seek(-hashChunk, io.SeekEnd); err != nil {
			return "", err
		}
		if _, err := io.CopyN(h, f, hashChunk); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
