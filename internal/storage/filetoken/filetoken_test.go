package filetoken

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "nested", "token"))

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Save(ctx, "tok-1"))
	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-1", tok)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_Corrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(p, []byte("not json"), 0o600))

	_, _, err := New(p).Load(context.Background())
	require.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	require.Equal(t, "token", filepath.Base(DefaultPath()))
	require.Equal(t, ".parceldesk", filepath.Base(filepath.Dir(DefaultPath())))
	require.Equal(t, DefaultPath(), New("").Path())
}
