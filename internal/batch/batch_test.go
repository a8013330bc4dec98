package batch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"numeric-desensitizer/internal/desensitizer"
	"numeric-desensitizer/internal/logger"
	"numeric-desensitizer/internal/metrics"
)

const sample = "# 1.1 概述\n\n该矿井深度为500米，年产量达到100万吨。\n表1显示了详细数据。\n"

func newProcessor(t *testing.T) (*Processor, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return New(nil, logger.NewWithWriter("BATCH", "debug", io.Discard), m), m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestDesensitizeFile_DefaultNaming(t *testing.T) {
	p, m := newProcessor(t)
	in := filepath.Join(t.TempDir(), "report.md")
	writeFile(t, in, sample)

	res, err := p.DesensitizeFile(in, "")
	require.NoError(t, err)

	dir := filepath.Dir(in)
	assert.Equal(t, filepath.Join(dir, "report_desensitized.md"), res.Output)
	assert.Equal(t, filepath.Join(dir, "report_desensitized_map.json"), res.Mapping)
	assert.Equal(t, 2, res.Count)

	out := readFile(t, res.Output)
	assert.NotContains(t, out, "500")
	assert.Contains(t, out, "表1显示")

	mapping, err := desensitizer.LoadMapping(res.Mapping)
	require.NoError(t, err)
	assert.Equal(t, sample, desensitizer.Restore(out, mapping))

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.Documents.Desensitized)
	assert.Equal(t, int64(2), s.Numbers.Replaced)
	assert.Equal(t, int64(1), s.Documents.ByExtension[".md"])
}

func TestDesensitizeFile_ExplicitOutput(t *testing.T) {
	p, _ := newProcessor(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "a.txt")
	writeFile(t, in, "值为42")

	out := filepath.Join(dir, "nested", "masked.txt")
	res, err := p.DesensitizeFile(in, out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "masked_map.json"), res.Mapping)
	assert.Equal(t, "值为￥1￥", readFile(t, out))
}

func TestDesensitizeFile_Missing(t *testing.T) {
	p, m := newProcessor(t)
	_, err := p.DesensitizeFile(filepath.Join(t.TempDir(), "absent.md"), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), m.Snapshot().Errors.Read)
}

func TestDesensitizeFile_GBKInput(t *testing.T) {
	p, _ := newProcessor(t)
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("深度为350米")
	require.NoError(t, err)
	in := filepath.Join(t.TempDir(), "legacy.txt")
	writeFile(t, in, gbk)

	res, err := p.DesensitizeFile(in, "")
	require.NoError(t, err)
	assert.Equal(t, "深度为￥1￥米", readFile(t, res.Output))
}

func TestRestoreFile_RoundTrip(t *testing.T) {
	p, m := newProcessor(t)
	in := filepath.Join(t.TempDir(), "report.md")
	writeFile(t, in, sample)

	des, err := p.DesensitizeFile(in, "")
	require.NoError(t, err)

	res, err := p.RestoreFile(des.Output, des.Mapping, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(in), "report_desensitized_restored.md"), res.Output)
	assert.Equal(t, sample, readFile(t, res.Output))
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, int64(1), m.Snapshot().Documents.Restored)
}

func TestRestoreFile_MissingMapping(t *testing.T) {
	p, m := newProcessor(t)
	in := filepath.Join(t.TempDir(), "a.md")
	writeFile(t, in, "￥1￥")

	_, err := p.RestoreFile(in, filepath.Join(t.TempDir(), "nope.json"), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), m.Snapshot().Errors.Mapping)
}

func TestRestoreFile_MalformedMapping(t *testing.T) {
	p, _ := newProcessor(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "a.md")
	writeFile(t, in, "￥1￥")
	mp := filepath.Join(dir, "bad_map.json")
	writeFile(t, mp, `["x"]`)

	_, err := p.RestoreFile(in, mp, "")
	assert.ErrorIs(t, err, desensitizer.ErrMalformedMapping)
}

func TestDesensitizeDir(t *testing.T) {
	p, _ := newProcessor(t)
	in := filepath.Join(t.TempDir(), "docs")
	writeFile(t, filepath.Join(in, "a.md"), "深度500米")
	writeFile(t, filepath.Join(in, "b.CSV"), "名称,数值\n深度,320\n")
	writeFile(t, filepath.Join(in, "image.png"), "12345")
	writeFile(t, filepath.Join(in, "old_map.json"), `{"￥1￥": "9"}`)
	writeFile(t, filepath.Join(in, "sub", "c.md"), "深度700米")

	sum, err := p.DesensitizeDir(context.Background(), in, "")
	require.NoError(t, err)

	assert.Equal(t, in+"_desensitized", sum.OutputDir)
	assert.Equal(t, 2, sum.Processed())
	assert.Empty(t, sum.Failed())

	assert.Equal(t, "深度￥1￥米", readFile(t, filepath.Join(sum.OutputDir, "a.md")))
	assert.FileExists(t, filepath.Join(sum.OutputDir, "a_map.json"))
	assert.FileExists(t, filepath.Join(sum.OutputDir, "b.CSV"))
	assert.FileExists(t, filepath.Join(sum.OutputDir, "b_map.json"))
	assert.NoFileExists(t, filepath.Join(sum.OutputDir, "image.png"))
	assert.NoDirExists(t, filepath.Join(sum.OutputDir, "sub"))
}

func TestDesensitizeDir_ContinuesPastFailures(t *testing.T) {
	p, _ := newProcessor(t)
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "good.txt"), "值42")
	writeFile(t, filepath.Join(in, "bad.txt"), "\xff\xff\xff")

	sum, err := p.DesensitizeDir(context.Background(), in, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed())
	failed := sum.Failed()
	require.Len(t, failed, 1)
	assert.True(t, strings.HasSuffix(failed[0].Input, "bad.txt"))
}

func TestDesensitizeDir_Missing(t *testing.T) {
	p, _ := newProcessor(t)
	_, err := p.DesensitizeDir(context.Background(), filepath.Join(t.TempDir(), "absent"), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDesensitizeDir_Cancelled(t *testing.T) {
	p, _ := newProcessor(t)
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.md"), "1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := p.DesensitizeDir(ctx, in, filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sum.Files)
}

func TestRestoreDir_SharedMapping(t *testing.T) {
	p, _ := newProcessor(t)
	root := t.TempDir()

	// Two documents desensitized in one session share a mapping.
	d := desensitizer.New()
	in := filepath.Join(root, "masked")
	writeFile(t, filepath.Join(in, "a.md"), d.Desensitize("深度500米"))
	writeFile(t, filepath.Join(in, "b.txt"), d.Desensitize("宽度500米，高度12米"))
	mp := filepath.Join(root, "shared_map.json")
	require.NoError(t, d.Mapping().Save(mp))

	sum, err := p.RestoreDir(context.Background(), in, mp, "")
	require.NoError(t, err)
	assert.Equal(t, in+"_restored", sum.OutputDir)
	assert.Equal(t, 2, sum.Processed())
	assert.Equal(t, "深度500米", readFile(t, filepath.Join(sum.OutputDir, "a.md")))
	assert.Equal(t, "宽度500米，高度12米", readFile(t, filepath.Join(sum.OutputDir, "b.txt")))
}

func TestRestoreDir_MissingMapping(t *testing.T) {
	p, _ := newProcessor(t)
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	_, err := p.RestoreDir(context.Background(), in, filepath.Join(in, "nope.json"), out)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoDirExists(t, out)
}

func TestSummary_Counts(t *testing.T) {
	s := &Summary{Files: []FileResult{{Input: "a"}, {Input: "b", Err: ErrNotFound}, {Input: "c"}}}
	assert.Equal(t, 2, s.Processed())
	assert.Len(t, s.Failed(), 1)
}
