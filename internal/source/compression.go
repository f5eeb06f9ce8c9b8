package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// compression identifies the wrapper around a GeoJSON document.
type compression int

const (
	compressionNone compression = iota
	compressionGZ
	compressionZSTD
	compressionXZ
)

const (
	extGZ   = ".gz"
	extZSTD = ".zst"
	extXZ   = ".xz"
)

func detectCompression(path string) compression {
	path = strings.ToLower(path)

	switch {
	case strings.HasSuffix(path, extGZ):
		return compressionGZ
	case strings.HasSuffix(path, extZSTD):
		return compressionZSTD
	case strings.HasSuffix(path, extXZ):
		return compressionXZ
	default:
		return compressionNone
	}
}

// trimCompression strips a recognized compression suffix from path.
func trimCompression(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range []string{extGZ, extZSTD, extXZ} {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}

// openDecompressed opens path and returns a reader over its decompressed
// content plus a cleanup function that closes everything it opened.
func openDecompressed(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path) //nolint:gosec // operator-supplied input path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	var (
		reader  io.Reader
		cleanup = func() error { return nil }
	)

	switch detectCompression(path) {
	case compressionNone:
		reader = file

	case compressionGZ:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		reader, cleanup = gzReader, gzReader.Close

	case compressionZSTD:
		decoder, err := zstd.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		reader = decoder
		cleanup = func() error {
			decoder.Close()
			return nil
		}

	case compressionXZ:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		// xz.Reader has no Close method
		reader = xzReader
	}

	return reader, func() error {
		cleanupErr := cleanup()
		if closeErr := file.Close(); closeErr != nil && cleanupErr == nil {
			cleanupErr = closeErr
		}
		return cleanupErr
	}, nil
}
