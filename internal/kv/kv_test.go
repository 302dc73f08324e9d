package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type line struct {
	ID  int64 `json:"id"`
	Qty int   `json:"qty"`
}

func TestStore_GetDefaultWhenMissing(t *testing.T) {
	s := New(NewMemory(), zaptest.NewLogger(t))
	require.Equal(t, "none", Get(s, KeyAccessToken, "none"))
	require.Nil(t, Get[[]line](s, KeyCartItems, nil))
}

func TestStore_SetGetRemove(t *testing.T) {
	s := New(NewMemory(), nil)
	want := []line{{ID: 1, Qty: 2}, {ID: 7, Qty: 1}}
	require.NoError(t, Set(s, KeyCartItems, want))
	require.Equal(t, want, Get[[]line](s, KeyCartItems, nil))

	require.NoError(t, s.Remove(KeyCartItems))
	require.Nil(t, Get[[]line](s, KeyCartItems, nil))
	require.NoError(t, s.Remove(KeyCartItems))
}

func TestStore_CorruptValueYieldsDefault(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Save(context.Background(), KeyCartItems, []byte("{not json")))
	s := New(m, zaptest.NewLogger(t))
	require.Equal(t, []line{}, Get(s, KeyCartItems, []line{}))
}

func TestStore_NullTokenRoundTrip(t *testing.T) {
	s := New(NewMemory(), nil)
	var none *string
	require.NoError(t, Set(s, KeyAccessToken, none))
	got := Get[*string](s, KeyAccessToken, nil)
	require.Nil(t, got)

	tok := "abc"
	require.NoError(t, Set(s, KeyAccessToken, &tok))
	got = Get[*string](s, KeyAccessToken, nil)
	require.NotNil(t, got)
	require.Equal(t, "abc", *got)
}

func TestOrigin(t *testing.T) {
	require.Equal(t, "http_localhost_8000", Origin("http://localhost:8000/api"))
	require.Equal(t, "https_shop.example.com", Origin("https://Shop.Example.com/api/v1"))
	require.Equal(t, "default", Origin(""))
	require.NotContains(t, Origin("weird/../path"), "/")
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	f, err := NewFile(root, "http_localhost_8000")
	require.NoError(t, err)
	require.NoError(t, f.Save(ctx, KeyRefreshToken, []byte(`"r1"`)))

	st, err := os.Stat(filepath.Join(f.Dir(), "refreshtoken.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	f2, err := NewFile(root, "http_localhost_8000")
	require.NoError(t, err)
	got, err := f2.Load(ctx, KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, `"r1"`, string(got))

	other, err := NewFile(root, "https_other")
	require.NoError(t, err)
	_, err = other.Load(ctx, KeyRefreshToken)
	require.ErrorIs(t, err, ErrMissing)

	require.NoError(t, f2.Delete(ctx, KeyRefreshToken))
	require.NoError(t, f2.Delete(ctx, KeyRefreshToken))
	_, err = f.Load(ctx, KeyRefreshToken)
	require.ErrorIs(t, err, ErrMissing)
}

func TestDefaultDir_UsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	require.Equal(t, filepath.Join("/tmp/xdg", "agrimarket"), DefaultDir())
}

func TestRedis_Backend(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, RedisOptions{Addr: mr.Addr()}, "http_localhost_8000")
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Load(ctx, KeyCartItems)
	require.ErrorIs(t, err, ErrMissing)

	require.NoError(t, r.Save(ctx, KeyCartItems, []byte(`[]`)))
	raw, err := mr.Get("agrimarket:http_localhost_8000:cartItems")
	require.NoError(t, err)
	require.Equal(t, `[]`, raw)

	got, err := r.Load(ctx, KeyCartItems)
	require.NoError(t, err)
	require.Equal(t, `[]`, string(got))

	require.NoError(t, r.Delete(ctx, KeyCartItems))
	require.False(t, mr.Exists("agrimarket:http_localhost_8000:cartItems"))
}

func TestRedis_RequiresAddr(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisOptions{}, "x")
	require.Error(t, err)
}

func TestSealed_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()

	s, err := NewSealed(ctx, inner, "correct horse")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, KeyAccessToken, []byte(`"secret-token"`)))

	raw, err := inner.Load(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret-token")

	got, err := s.Load(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, `"secret-token"`, string(got))

	// Reopening with the same passphrase reuses the stored salt.
	s2, err := NewSealed(ctx, inner, "correct horse")
	require.NoError(t, err)
	got, err = s2.Load(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, `"secret-token"`, string(got))

	bad, err := NewSealed(ctx, inner, "wrong")
	require.NoError(t, err)
	_, err = bad.Load(ctx, KeyAccessToken)
	require.Error(t, err)

	// Through a Store a wrong passphrase degrades to the default.
	st := New(bad, zaptest.NewLogger(t))
	require.Equal(t, "", Get(st, KeyAccessToken, ""))
}

func TestSealed_EmptyPassphrase(t *testing.T) {
	_, err := NewSealed(context.Background(), NewMemory(), "")
	require.Error(t, err)
}
