package romloader

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// streamOpener wraps a single-stream compressor around r.
type streamOpener func(r io.Reader) (io.ReadCloser, error)

// streamSuffixes are stripped from the outer name to name a plain
// compressed ROM. The tarball shorthands never name a ROM.
var streamSuffixes = []string{".gz", ".xz", ".zst", ".lz4"}

func openGzip(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func openXZ(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

func openZstd(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}

func openLZ4(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// extractFromStream decompresses data and either extracts the first ROM of
// the contained tarball or returns the decompressed content as the ROM.
func extractFromStream(data []byte, name string, extensions []string, open streamOpener) ([]byte, string, error) {
	rc, err := open(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, tarMagicOffset+len(magicTar))
	header, _ := br.Peek(tarMagicOffset + len(magicTar))
	if isTar(header) {
		return extractFromTar(br, extensions)
	}

	rom, err := limitedRead(br)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decompress: %w", err)
	}
	return rom, innerName(name), nil
}

// innerName drops the compression suffix, so game.nes.gz names game.nes.
func innerName(name string) string {
	base := path.Base(name)
	lower := strings.ToLower(base)
	for _, suffix := range streamSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return base[:len(base)-len(suffix)]
		}
	}
	return base
}

// extractFromTar extracts the first ROM file from a tar archive
func extractFromTar(r io.Reader, extensions []string) ([]byte, string, error) {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read tar entry: %w", err)
		}

		if header.Typeflag != tar.TypeReg || !isROMFile(header.Name, extensions) {
			continue
		}

		rom, err := limitedRead(tr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s from tar: %w", header.Name, err)
		}
		return rom, path.Base(header.Name), nil
	}

	return nil, "", ErrNoROMFile
}
