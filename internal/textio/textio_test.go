package textio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecode_UTF8(t *testing.T) {
	text, enc, err := Decode([]byte("深度500米"))
	require.NoError(t, err)
	assert.Equal(t, UTF8, enc)
	assert.Equal(t, "深度500米", text)
}

func TestDecode_GBKFallback(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().String("矿井深度为500米")
	require.NoError(t, err)

	text, enc, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, GBK, enc)
	assert.Equal(t, "矿井深度为500米", text)
}

func TestDecode_Undecodable(t *testing.T) {
	_, _, err := Decode([]byte{0x81, 0x20, 0xff})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "doc.md")
	require.NoError(t, WriteFile(path, "表1 数据"))

	text, enc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, UTF8, enc)
	assert.Equal(t, "表1 数据", text)
}

func TestReadFile_Missing(t *testing.T) {
	_, _, err := ReadFile(filepath.Join(t.TempDir(), "none.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReadFile_GBKOnDisk(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().String("温度25.5度")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "legacy.txt")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	text, enc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, GBK, enc)
	assert.Equal(t, "温度25.5度", text)
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("report.MD", DefaultExtensions))
	assert.True(t, Allowed("a/b/data.csv", DefaultExtensions))
	assert.False(t, Allowed("image.png", DefaultExtensions))
	assert.False(t, Allowed("Makefile", DefaultExtensions))
}

func TestNaming(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "report_desensitized.md"), Suffixed(filepath.Join("dir", "report.md"), "_desensitized"))
	assert.Equal(t, "noext_restored", Suffixed("noext", "_restored"))
	assert.Equal(t, filepath.Join("out", "report_desensitized_map.json"),
		MappingPath(filepath.Join("out", "report_desensitized.md")))
}
