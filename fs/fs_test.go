package fs

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateSecureFileOwnerOnly(t *testing.T) {
	file := path.Join(t.TempDir(), "transcript.json")
	fd, err := CreateSecureFile(file)
	require.NoError(t, err)
	defer fd.Close()

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = fd.WriteString("{}")
	require.NoError(t, err)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()

	here, err := Exists(path.Join(dir, "nope.json"))
	require.NoError(t, err)
	require.False(t, here)

	file := path.Join(dir, "here.json")
	fd, err := CreateSecureFile(file)
	require.NoError(t, err)
	fd.Close()

	here, err = Exists(file)
	require.NoError(t, err)
	require.True(t, here)
}
