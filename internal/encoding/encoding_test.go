package encoding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestMetaInterpreter_Registry(t *testing.T) {
	p, err := MetaInterpreter("asp", "bd-tight-reach")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("asp", "meta-int", "body-decoupled", "meta-tight-reach.lp"), p)

	p, err = MetaInterpreter("asp", Default)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("asp", "meta-int", "standard", "meta.lp"), p)

	_, err = MetaInterpreter("asp", "db")
	assert.ErrorIs(t, err, ErrUnknownMetaInterpreter)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"bd", "bd-reach", "bd-tight", "bd-tight-reach", "std"}, Names())
}

func TestSources_Order(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, CoreFile))
	touch(t, filepath.Join(dir, "meta-int", "body-decoupled", "meta.lp"))
	domain := filepath.Join(dir, "example.lp")
	touch(t, domain)

	got, err := Sources(dir, "bd", []string{domain})
	require.NoError(t, err)
	assert.Equal(t, []string{
		domain,
		filepath.Join(dir, "search", "core.lp"),
		filepath.Join(dir, "meta-int", "body-decoupled", "meta.lp"),
	}, got)
}

func TestSources_MissingFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, CoreFile))
	domain := filepath.Join(dir, "example.lp")
	touch(t, domain)

	_, err := Sources(dir, "std", []string{domain})
	assert.Error(t, err)

	_, err = Sources(dir, "std", nil)
	assert.Error(t, err)
}
