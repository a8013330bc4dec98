// Package textio reads and writes the text documents handled by the
// desensitizer. Input is decoded as UTF-8 first and GBK second; output is
// always UTF-8.
package textio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// Encoding names the charset a document was decoded from.
type Encoding string

// Supported input encodings, in the order they are tried.
const (
	UTF8 Encoding = "utf-8"
	GBK  Encoding = "gbk"
)

// ErrDecode is returned when content is neither valid UTF-8 nor valid GBK.
var ErrDecode = errors.New("undecodable text")

// DefaultExtensions are the file types picked up by directory runs.
var DefaultExtensions = []string{
	".md", ".txt", ".csv", ".json", ".xml", ".html", ".htm",
	".py", ".js", ".ts", ".css", ".sql", ".log",
}

// Decode converts raw bytes to a string, falling back to GBK when the data
// is not valid UTF-8.
func Decode(data []byte) (string, Encoding, error) {
	if utf8.Valid(data) {
		return string(data), UTF8, nil
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !utf8.Valid(out) || strings.ContainsRune(string(out), utf8.RuneError) {
		return "", "", fmt.Errorf("%w: invalid gbk sequence", ErrDecode)
	}
	return string(out), GBK, nil
}

// ReadFile reads and decodes path. A missing file yields an error wrapping
// fs.ErrNotExist.
func ReadFile(path string) (string, Encoding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	text, enc, err := Decode(data)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", path, err)
	}
	return text, enc, nil
}

// WriteFile writes text as UTF-8, creating parent directories.
func WriteFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil { // #nosec G306 -- output documents are not secrets
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Allowed reports whether name has one of the given extensions,
// compared case-insensitively.
func Allowed(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Suffixed inserts suffix between the stem and the extension of path:
// "dir/report.md" + "_desensitized" → "dir/report_desensitized.md".
func Suffixed(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// MappingPath returns the mapping file written next to an output document:
// "out/report_desensitized.md" → "out/report_desensitized_map.json".
func MappingPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_map.json"
}
