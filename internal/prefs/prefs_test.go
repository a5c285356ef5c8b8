package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SavePageSize("hr", 50))
	require.NoError(t, s.SaveView("hr", "employees"))
	require.NoError(t, s.SaveView("iot", "devices"))

	again, err := Open(path)
	require.NoError(t, err)
	p := again.Prefs()
	n, ok := p.PageSize("hr")
	assert.True(t, ok)
	assert.Equal(t, 50, n)
	v, _ := p.View("iot")
	assert.Equal(t, "devices", v)
	_, ok = p.PageSize("iot")
	assert.False(t, ok)
}

func TestStore_RejectsBadPageSize(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	assert.Error(t, s.SavePageSize("hr", 0))
	require.NoError(t, s.SaveView("hr", "reports"))
	v, ok := s.Prefs().View("hr")
	assert.True(t, ok)
	assert.Equal(t, "reports", v)
}

func TestLoad_MissingAndCorrupt(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, p.Screens)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("screens: [1"), 0o644))
	_, err = Open(bad)
	assert.ErrorContains(t, err, "parse prefs")
}
