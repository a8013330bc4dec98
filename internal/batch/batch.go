// Package batch applies desensitization and restoration to files and
// directories on disk.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"numeric-desensitizer/internal/desensitizer"
	"numeric-desensitizer/internal/logger"
	"numeric-desensitizer/internal/metrics"
	"numeric-desensitizer/internal/textio"
)

// Output naming suffixes.
const (
	DesensitizedSuffix = "_desensitized"
	RestoredSuffix     = "_restored"
	mappingSuffix      = "_map.json"
)

// ErrNotFound is returned when an input file, directory or mapping file
// does not exist.
var ErrNotFound = errors.New("not found")

// FileResult describes one processed file.
type FileResult struct {
	Input   string `json:"input"`
	Output  string `json:"output"`
	Mapping string `json:"mapping,omitempty"`
	Count   int    `json:"count"`
	Err     error  `json:"-"`
}

// Summary is the outcome of a directory run.
type Summary struct {
	OutputDir string
	Files     []FileResult
}

// Processed is the number of files handled without error.
func (s *Summary) Processed() int {
	n := 0
	for _, f := range s.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the files that could not be processed.
func (s *Summary) Failed() []FileResult {
	var out []FileResult
	for _, f := range s.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Processor runs file and directory jobs.
type Processor struct {
	exts    []string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New creates a Processor picking up files with the given extensions in
// directory runs. A nil m disables metrics; empty exts selects the defaults.
func New(exts []string, log *logger.Logger, m *metrics.Metrics) *Processor {
	if len(exts) == 0 {
		exts = textio.DefaultExtensions
	}
	if m == nil {
		m = metrics.New()
	}
	return &Processor{exts: exts, log: log, metrics: m}
}

// DesensitizeFile desensitizes in with a fresh mapping, writes the result to
// out (default <base>_desensitized<ext>) and the mapping to <outbase>_map.json.
func (p *Processor) DesensitizeFile(in, out string) (FileResult, error) {
	if out == "" {
		out = textio.Suffixed(in, DesensitizedSuffix)
	}
	res := FileResult{Input: in, Output: out, Mapping: textio.MappingPath(out)}

	text, err := p.read(in)
	if err != nil {
		return res, err
	}

	start := time.Now()
	masked, m := desensitizer.Desensitize(text)
	res.Count = m.Len()

	if err := textio.WriteFile(out, masked); err != nil {
		p.metrics.ErrorsWrite.Add(1)
		return res, err
	}
	if err := m.Save(res.Mapping); err != nil {
		p.metrics.ErrorsWrite.Add(1)
		return res, err
	}

	p.metrics.RecordDesensitize(res.Count, time.Since(start))
	p.metrics.RecordExtension(filepath.Ext(in))
	p.log.Infof("file_desensitized", "%s -> %s: %d numbers, mapping %s", in, out, res.Count, res.Mapping)
	return res, nil
}

// RestoreFile restores in using the mapping file at mappingPath and writes
// the result to out (default <base>_restored<ext>).
func (p *Processor) RestoreFile(in, mappingPath, out string) (FileResult, error) {
	m, err := p.loadMapping(mappingPath)
	if err != nil {
		return FileResult{Input: in, Mapping: mappingPath}, err
	}
	return p.restoreWith(in, m, mappingPath, out)
}

func (p *Processor) restoreWith(in string, m *desensitizer.Mapping, mappingPath, out string) (FileResult, error) {
	if out == "" {
		out = textio.Suffixed(in, RestoredSuffix)
	}
	res := FileResult{Input: in, Output: out, Mapping: mappingPath}

	text, err := p.read(in)
	if err != nil {
		return res, err
	}

	start := time.Now()
	res.Count = desensitizer.CountPlaceholders(text, m)
	restored := desensitizer.Restore(text, m)

	if err := textio.WriteFile(out, restored); err != nil {
		p.metrics.ErrorsWrite.Add(1)
		return res, err
	}

	p.metrics.RecordRestore(res.Count, time.Since(start))
	p.metrics.RecordExtension(filepath.Ext(in))
	p.log.Infof("file_restored", "%s -> %s: %d placeholders", in, out, res.Count)
	return res, nil
}

// DesensitizeDir desensitizes every top-level file of inDir whose extension
// is allowed, writing each under the same name to outDir (default
// <inDir>_desensitized) with its own mapping file. A failing file is logged
// and the run continues. Cancelling ctx stops the run between files.
func (p *Processor) DesensitizeDir(ctx context.Context, inDir, outDir string) (*Summary, error) {
	if outDir == "" {
		outDir = strings.TrimRight(inDir, `/\`) + DesensitizedSuffix
	}
	names, err := p.listDir(inDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	sum := &Summary{OutputDir: outDir}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := p.DesensitizeFile(filepath.Join(inDir, name), filepath.Join(outDir, name))
		if err != nil {
			res.Err = err
			p.log.Errorf("file_failed", "%s: %v", name, err)
		}
		sum.Files = append(sum.Files, res)
	}
	p.log.Infof("dir_desensitized", "%s: %d of %d files processed", inDir, sum.Processed(), len(sum.Files))
	return sum, nil
}

// RestoreDir restores every allowed top-level file of inDir with the single
// mapping at mappingPath, writing to outDir (default <inDir>_restored).
func (p *Processor) RestoreDir(ctx context.Context, inDir, mappingPath, outDir string) (*Summary, error) {
	if outDir == "" {
		outDir = strings.TrimRight(inDir, `/\`) + RestoredSuffix
	}
	names, err := p.listDir(inDir)
	if err != nil {
		return nil, err
	}
	m, err := p.loadMapping(mappingPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	sum := &Summary{OutputDir: outDir}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := p.restoreWith(filepath.Join(inDir, name), m, mappingPath, filepath.Join(outDir, name))
		if err != nil {
			res.Err = err
			p.log.Errorf("file_failed", "%s: %v", name, err)
		}
		sum.Files = append(sum.Files, res)
	}
	p.log.Infof("dir_restored", "%s: %d of %d files processed with %s", inDir, sum.Processed(), len(sum.Files), mappingPath)
	return sum, nil
}

// listDir returns the allowed regular files directly under dir, sorted by
// name. Mapping files are never treated as documents.
func (p *Processor) listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("directory %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasSuffix(name, mappingSuffix) || !textio.Allowed(name, p.exts) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (p *Processor) read(path string) (string, error) {
	text, enc, err := textio.ReadFile(path)
	if err != nil {
		p.metrics.ErrorsRead.Add(1)
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file %s: %w", path, ErrNotFound)
		}
		return "", err
	}
	if enc != textio.UTF8 {
		p.log.Debugf("decode_fallback", "%s decoded as %s", path, enc)
	}
	return text, nil
}

func (p *Processor) loadMapping(path string) (*desensitizer.Mapping, error) {
	m, err := desensitizer.LoadMapping(path)
	if err != nil {
		p.metrics.ErrorsMapping.Add(1)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("mapping %s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return m, nil
}
