package accesslog

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// gzipSuffix selects transparent decompression.
const gzipSuffix = ".gz"

// readBufferSize is the initial buffer for line reads; lines longer than this
// are still read whole.
const readBufferSize = 64 * 1024

// LineSource yields the trimmed, non-blank lines of a plain or gzip-compressed
// text file. It is single-pass and not restartable.
//
// Invalid UTF-8 is replaced with U+FFFD instead of failing the read.
type LineSource struct {
	file   *os.File
	gz     *gzip.Reader
	reader *bufio.Reader
	line   string
	err    error
	done   bool
}

// OpenLines opens path for line reading. A path ending in ".gz" is
// decompressed. Errors opening the file or initializing the gzip stream are
// returned as-is wrapped with the path; they are fatal for the analysis.
func OpenLines(path string) (*LineSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log: %w", err)
	}

	src := &LineSource{file: f}

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), gzipSuffix) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to initialize gzip stream for %s: %w", path, err)
		}
		src.gz = gz
		r = gz
	}

	decoded := transform.NewReader(r, unicode.UTF8.NewDecoder())
	src.reader = bufio.NewReaderSize(decoded, readBufferSize)

	return src, nil
}

// Scan advances to the next non-blank line. It returns false at end of input
// or on a read error; call Err to tell them apart.
func (s *LineSource) Scan() bool {
	for !s.done {
		raw, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = fmt.Errorf("failed to read access log: %w", err)
				return false
			}
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		s.line = line
		return true
	}
	return false
}

// Text returns the current line.
func (s *LineSource) Text() string {
	return s.line
}

// Err returns the first non-EOF read error.
func (s *LineSource) Err() error {
	return s.err
}

// Close releases the underlying file and decompressor.
func (s *LineSource) Close() error {
	var gzErr error
	if s.gz != nil {
		gzErr = s.gz.Close()
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	return gzErr
}
