package entropy

import (
	"os"
	"path"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesFromCryptoRand(t *testing.T) {
	random1, err := Bytes(nil, 32)
	require.NoError(t, err)
	require.Len(t, random1, 32)

	random2, err := Bytes(nil, 32)
	require.NoError(t, err)
	require.NotEqual(t, random1, random2)
}

func TestBytesFallsBackOnShortSource(t *testing.T) {
	random, err := Bytes(strings.NewReader("abc"), 32)
	require.NoError(t, err)
	require.Len(t, random, 32)
}

func TestSeedFromFixedSource(t *testing.T) {
	seed, err := Seed(strings.NewReader("\x01\x00\x00\x00\x00\x00\x00\x00"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seed)
}

func TestScriptReader(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no shell scripts on windows")
	}
	script := path.Join(t.TempDir(), "entropy.sh")
	err := os.WriteFile(script, []byte("#!/bin/sh\nprintf 'deadbeef'\n"), 0700)
	require.NoError(t, err)

	r := NewScriptReader(script)
	require.Equal(t, script, r.GetPath())

	seed1, err := Seed(r)
	require.NoError(t, err)
	seed2, err := Seed(r)
	require.NoError(t, err)
	require.Equal(t, seed1, seed2)
}

func TestScriptReaderRejectsMissingScript(t *testing.T) {
	var buf [8]byte
	_, err := (&ScriptReader{}).Read(buf[:])
	require.ErrorContains(t, err, "no entropy script")

	_, err = NewScriptReader(path.Join(t.TempDir(), "nope.sh")).Read(buf[:])
	require.Error(t, err)
}
