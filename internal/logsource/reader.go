// Package logsource reads "cvs log" dumps from disk.
package logsource

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/cvslog-analyzer/internal/analyzer"
	"golang.org/x/text/encoding/charmap"
)

// Compile-time interface check
var _ analyzer.LogReader = (*Reader)(nil)

// Marker every non-empty cvs log dump contains.
const rcsFileMarker = "RCS file:"

// Reader handles reading and validating cvs log dump files.
// Implements analyzer.LogReader interface.
type Reader struct {
	maxSizeMB int
}

// NewReader creates a new cvs log reader
func NewReader(maxSizeMB int) *Reader {
	return &Reader{
		maxSizeMB: maxSizeMB,
	}
}

// Read implements analyzer.LogReader.Read.
// Reads the dump and returns it as UTF-8 text.
func (r *Reader) Read(sourcePath string) (string, error) {
	// Check if file exists
	fileInfo, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("cvs log file not found: %s", sourcePath)
		}
		return "", fmt.Errorf("failed to stat cvs log file: %w", err)
	}

	if fileInfo.IsDir() {
		return "", fmt.Errorf("cvs log path is a directory: %s", sourcePath)
	}

	// Check file permissions
	if fileInfo.Mode().Perm()&0400 == 0 {
		return "", fmt.Errorf("cvs log file is not readable: %s", sourcePath)
	}

	// Check file size
	maxBytes := int64(r.maxSizeMB) * 1024 * 1024
	if fileInfo.Size() > maxBytes {
		return "", fmt.Errorf("cvs log file exceeds maximum size of %dMB (size: %.2fMB)",
			r.maxSizeMB, float64(fileInfo.Size())/1024/1024)
	}

	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to read cvs log file: %w", err)
	}

	contentStr, err := Decode(content)
	if err != nil {
		return "", fmt.Errorf("failed to decode cvs log file: %w", err)
	}

	if err := r.Validate(contentStr); err != nil {
		return "", fmt.Errorf("cvs log content validation failed: %w", err)
	}

	return contentStr, nil
}

// Decode returns data as a string, converting from ISO-8859-1 when the bytes
// are not valid UTF-8. Old CVS servers write commit messages in Latin-1.
func Decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	return charmap.ISO8859_1.NewDecoder().String(string(data))
}

// Validate implements analyzer.LogReader.Validate.
func (r *Reader) Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("cvs log file is empty")
	}

	if !strings.Contains(content, rcsFileMarker) {
		return fmt.Errorf("content does not look like cvs log output (no %q lines)", rcsFileMarker)
	}

	return nil
}

// GetSourceInfo implements analyzer.LogReader.GetSourceInfo.
// Returns metadata about the cvs log file.
func (r *Reader) GetSourceInfo(sourcePath string) (map[string]interface{}, error) {
	fileInfo, err := os.Stat(sourcePath)
	if err != nil {
		return nil, err
	}

	info := map[string]interface{}{
		"size_bytes": fileInfo.Size(),
		"size_mb":    float64(fileInfo.Size()) / 1024 / 1024,
		"modified":   fileInfo.ModTime(),
		"age_hours":  time.Since(fileInfo.ModTime()).Hours(),
	}

	return info, nil
}
