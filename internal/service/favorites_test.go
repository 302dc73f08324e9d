package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/model"
)

// checkFavorites asserts that the derived ids mirror the entries and that products are unique.
func checkFavorites(t *testing.T, s *Storefront) {
	t.Helper()
	favs := s.Favorites()
	ids := s.FavoriteProductIDs()
	require.Len(t, ids, len(favs))
	seen := map[int64]bool{}
	for i, f := range favs {
		require.Equal(t, f.Product.ID, ids[i])
		require.False(t, seen[f.Product.ID], "duplicate favorite for product %d", f.Product.ID)
		seen[f.Product.ID] = true
		require.True(t, s.IsFavorite(f.Product.ID))
	}
	require.Equal(t, len(favs), s.FavoritesCount())
}

func TestToggleFavorite_Twice(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{}
	s := newStorefront(t, f, nil)
	ctx := context.Background()

	on, err := s.ToggleFavorite(ctx, 42)
	require.NoError(t, err)
	require.True(t, on)
	require.True(t, s.IsFavorite(42))
	checkFavorites(t, s)

	on, err = s.ToggleFavorite(ctx, 42)
	require.NoError(t, err)
	require.False(t, on)
	require.False(t, s.IsFavorite(42))
	require.Empty(t, f.favs)
	checkFavorites(t, s)
}

func TestToggleFavorite_FailureLeavesState(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{}
	s := newStorefront(t, f, nil)
	ctx := context.Background()

	_, err := s.ToggleFavorite(ctx, 1)
	require.NoError(t, err)

	f.addErr = errs.ErrTransport
	on, err := s.ToggleFavorite(ctx, 2)
	require.ErrorIs(t, err, errs.ErrTransport)
	require.False(t, on)
	require.Equal(t, []int64{1}, s.FavoriteProductIDs())

	f.removeErr = errs.ErrUnauthorized
	on, err = s.ToggleFavorite(ctx, 1)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.True(t, on)
	require.Equal(t, []int64{1}, s.FavoriteProductIDs())
	checkFavorites(t, s)
}

func TestToggleFavorite_MissingRelationIDDropsLocally(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{favs: []model.Favorite{{Product: product(9, "1")}}}
	s := newStorefront(t, f, nil)
	ctx := context.Background()
	require.NoError(t, s.LoadFavorites(ctx))
	require.True(t, s.IsFavorite(9))

	f.removeErr = errs.ErrTransport
	on, err := s.ToggleFavorite(ctx, 9)
	require.NoError(t, err)
	require.False(t, on)
	require.False(t, s.IsFavorite(9))
	checkFavorites(t, s)
}

func TestLoadFavorites(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{favs: []model.Favorite{
		{ID: 1, Product: product(10, "1")},
		{ID: 2, Product: product(20, "1")},
	}}
	s := newStorefront(t, f, nil)
	ctx := context.Background()

	require.NoError(t, s.LoadFavorites(ctx))
	require.Equal(t, []int64{10, 20}, s.FavoriteProductIDs())
	checkFavorites(t, s)

	f.listErr = errs.ErrTransport
	require.ErrorIs(t, s.LoadFavorites(ctx), errs.ErrTransport)
	require.Empty(t, s.Favorites())
	require.Empty(t, s.FavoriteProductIDs())
	checkFavorites(t, s)

	f.listErr = nil
	f.favs = nil
	require.NoError(t, s.LoadFavorites(ctx))
	require.NotNil(t, s.Favorites())
}

func TestFavoriteIDs_Subscribe(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{}
	s := newStorefront(t, f, nil)

	var got [][]int64
	s.State().FavoriteProductIDs.Subscribe(func(ids []int64) { got = append(got, ids) })

	_, err := s.ToggleFavorite(context.Background(), 5)
	require.NoError(t, err)
	s.ClearFavorites()

	require.Equal(t, [][]int64{{5}, {}}, got)
}
