package desensitizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sentinel wraps every placeholder. The fullwidth yen sign almost never
// occurs in technical documents.
const Sentinel = "￥"

// ErrMalformedMapping is returned when a persisted mapping is not a JSON
// object of placeholder strings to original strings.
var ErrMalformedMapping = errors.New("malformed mapping")

// Entry is one placeholder ↔ original pair.
type Entry struct {
	Placeholder string `json:"placeholder"`
	Original    string `json:"original"`
}

// Mapping records which placeholder stands for which original value.
// Entries keep first-insertion order. The zero value is an empty Mapping.
// A Mapping belongs to one session and is not safe for concurrent use.
type Mapping struct {
	entries  []Entry
	byValue  map[string]int // original → index into entries
	byHolder map[string]int // placeholder → index into entries
	next     int
}

// NewMapping returns an empty Mapping whose first placeholder is ￥1￥.
func NewMapping() *Mapping {
	return &Mapping{
		byValue:  make(map[string]int),
		byHolder: make(map[string]int),
		next:     1,
	}
}

// Placeholder formats the n-th placeholder.
func Placeholder(n int) string {
	return Sentinel + strconv.Itoa(n) + Sentinel
}

// Add returns the placeholder for original, allocating the next one on
// first sight.
func (m *Mapping) Add(original string) string {
	if i, ok := m.byValue[original]; ok {
		return m.entries[i].Placeholder
	}
	if m.next == 0 {
		m.next = 1
	}
	ph := Placeholder(m.next)
	m.next++
	m.put(ph, original)
	return ph
}

func (m *Mapping) put(placeholder, original string) {
	if m.byValue == nil {
		m.byValue = make(map[string]int)
		m.byHolder = make(map[string]int)
	}
	m.entries = append(m.entries, Entry{Placeholder: placeholder, Original: original})
	idx := len(m.entries) - 1
	if _, ok := m.byValue[original]; !ok {
		m.byValue[original] = idx
	}
	m.byHolder[placeholder] = idx
}

// PlaceholderFor returns the placeholder assigned to original.
func (m *Mapping) PlaceholderFor(original string) (string, bool) {
	i, ok := m.byValue[original]
	if !ok {
		return "", false
	}
	return m.entries[i].Placeholder, true
}

// Len returns the number of distinct values recorded.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of all pairs in allocation order.
func (m *Mapping) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// MarshalJSON writes {"placeholder": "original", ...} in allocation order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	out := []byte{'{'}
	for i, e := range m.entries {
		if i > 0 {
			out = append(out, ',')
		}
		k, err := encodeString(e.Placeholder)
		if err != nil {
			return nil, err
		}
		v, err := encodeString(e.Original)
		if err != nil {
			return nil, err
		}
		out = append(out, k...)
		out = append(out, ':')
		out = append(out, v...)
	}
	return append(out, '}'), nil
}

// encodeString quotes s without HTML escaping so CJK and symbols stay
// readable in the saved file.
func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON replaces the receiver's contents with the object in data,
// keeping the key order of the document.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMapping, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object", ErrMalformedMapping)
	}

	fresh := NewMapping()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMapping, err)
		}
		key, _ := kt.(string)
		vt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMapping, err)
		}
		val, ok := vt.(string)
		if !ok {
			return fmt.Errorf("%w: value for %q is not a string", ErrMalformedMapping, key)
		}
		if _, dup := fresh.byHolder[key]; dup {
			continue
		}
		fresh.put(key, val)
		if n, ok := placeholderIndex(key); ok && n >= fresh.next {
			fresh.next = n + 1
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMapping, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: extra data after object", ErrMalformedMapping)
	}
	*m = *fresh
	return nil
}

// placeholderIndex parses N out of ￥N￥.
func placeholderIndex(s string) (int, bool) {
	if !strings.HasPrefix(s, Sentinel) || !strings.HasSuffix(s, Sentinel) || len(s) <= 2*len(Sentinel) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(Sentinel) : len(s)-len(Sentinel)])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// MarshalIndent returns the mapping in the on-disk layout: a two-space
// indented JSON object in allocation order.
func (m *Mapping) MarshalIndent() ([]byte, error) {
	raw, err := m.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal mapping: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent mapping: %w", err)
	}
	return out.Bytes(), nil
}

// Save writes the mapping as indented JSON (placeholder → original).
func (m *Mapping) Save(path string) error {
	data, err := m.MarshalIndent()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create mapping dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write mapping %s: %w", path, err)
	}
	return nil
}

// LoadMapping reads a mapping file written by Save. A missing file yields an
// error wrapping fs.ErrNotExist; bad JSON wraps ErrMalformedMapping.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	m := NewMapping()
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("load mapping %s: %w", path, err)
	}
	return m, nil
}
