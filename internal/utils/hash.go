package utils

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// HashChunkSize is the read buffer used when streaming file content.
const HashChunkSize = 64 * 1024

// CalculateFileHash streams the file through SHA-256 in HashChunkSize
// chunks and returns the hex digest and the number of bytes read.
func CalculateFileHash(fsys afero.Fs, filePath string) (string, int64, error) {
	file, err := fsys.Open(filePath)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hash := sha256.New()
	buf := make([]byte, HashChunkSize)
	// Hide any WriterTo so every read goes through buf.
	n, err := io.CopyBuffer(hash, struct{ io.Reader }{file}, buf)
	if err != nil {
		return "", n, err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), n, nil
}
