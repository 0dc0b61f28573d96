// Package romloader extracts ROM content delivered inside compressed
// archives (ZIP, 7z, RAR, gzip, xz, zstd, lz4 and tarballs of those).
// Everything happens in memory because ROMs arrive as fetched bytes.
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Magic bytes for format detection
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
	magicXZ     = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	magicZstd   = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicLZ4    = []byte{0x04, 0x22, 0x4D, 0x18}
	magicTar    = []byte("ustar")
)

// tarMagicOffset is where the ustar signature sits in a tar header block.
const tarMagicOffset = 257

// Maximum extracted size. Disc based cores take much larger content than
// cartridge systems, so this is well above any cartridge ROM.
const maxROMSize = 512 * 1024 * 1024

// ErrNoROMFile is returned when no ROM file is found in an archive
var ErrNoROMFile = errors.New("no ROM file found in archive")

// ErrUnsupportedFormat is returned for unrecognized file formats
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrFileTooLarge is returned when extracted content exceeds size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// formatType represents the detected file format
type formatType int

const (
	formatUnknown formatType = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
	formatXZ
	formatZstd
	formatLZ4
	formatTar
)

// IsArchive reports whether data, named name, is an archive or compressed
// stream that Extract knows how to open.
func IsArchive(data []byte, name string) bool {
	switch detectFormat(data, name, nil) {
	case formatUnknown, formatRaw:
		return false
	default:
		return true
	}
}

// Extract returns the first file inside data whose name ends in one of the
// given extensions. Data that is not an archive is returned unchanged when
// its own name carries a ROM extension.
//
// Returns the ROM data, the file name (basename only) and any error.
func Extract(data []byte, name string, extensions []string) ([]byte, string, error) {
	switch detectFormat(data, name, extensions) {
	case formatRaw:
		if len(data) > maxROMSize {
			return nil, "", ErrFileTooLarge
		}
		return data, path.Base(name), nil

	case formatZIP:
		return extractFromZIP(data, extensions)

	case format7z:
		return extractFrom7z(data, extensions)

	case formatRAR:
		return extractFromRAR(data, extensions)

	case formatTar:
		return extractFromTar(bytes.NewReader(data), extensions)

	case formatGzip:
		return extractFromStream(data, name, extensions, openGzip)

	case formatXZ:
		return extractFromStream(data, name, extensions, openXZ)

	case formatZstd:
		return extractFromStream(data, name, extensions, openZstd)

	case formatLZ4:
		return extractFromStream(data, name, extensions, openLZ4)

	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// detectFormat determines the file format based on magic bytes and extension.
// The extensions parameter lists valid ROM file extensions (e.g. []string{".nes"}).
func detectFormat(header []byte, name string, extensions []string) formatType {
	if f := detectMagic(header); f != formatUnknown {
		return f
	}

	// Fall back to extension for archive formats
	lower := strings.ToLower(name)
	switch path.Ext(lower) {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	case ".xz", ".txz":
		return formatXZ
	case ".zst", ".tzst":
		return formatZstd
	case ".lz4":
		return formatLZ4
	case ".tar":
		return formatTar
	}

	if isROMFile(lower, extensions) {
		return formatRaw
	}
	return formatUnknown
}

func detectMagic(header []byte) formatType {
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return formatZIP
	case bytes.HasPrefix(header, magicRAR):
		return formatRAR
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicXZ):
		return formatXZ
	case bytes.HasPrefix(header, magicZstd):
		return formatZstd
	case bytes.HasPrefix(header, magicLZ4):
		return formatLZ4
	case bytes.HasPrefix(header, magicGzip):
		return formatGzip
	case isTar(header):
		return formatTar
	}
	return formatUnknown
}

func isTar(header []byte) bool {
	end := tarMagicOffset + len(magicTar)
	return len(header) >= end && bytes.Equal(header[tarMagicOffset:end], magicTar)
}

// isROMFile checks if a filename has one of the given ROM extensions (case-insensitive)
func isROMFile(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// limitedRead reads from r up to maxROMSize bytes, returning an error if exceeded
func limitedRead(r io.Reader) ([]byte, error) {
	lr := io.LimitReader(r, maxROMSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(data) > maxROMSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
