package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/model"
)

// ToggleFavorite flips the favorite state of productID on the server and, on success,
// locally. It returns the resulting state. On error nothing changes locally.
func (s *Storefront) ToggleFavorite(ctx context.Context, productID int64) (bool, error) {
	entry, ok := s.favoriteFor(productID)
	if ok {
		if entry.ID == 0 {
			s.log.Warn("favorite without relation id dropped locally",
				zap.Int64("product_id", productID), zap.Error(errs.ErrInconsistentState))
			s.dropFavorite(productID)
			return false, nil
		}
		if err := s.api.RemoveFavorite(ctx, entry.ID); err != nil {
			return true, fmt.Errorf("remove favorite %d: %w", entry.ID, err)
		}
		s.dropFavorite(productID)
		return false, nil
	}

	fav, err := s.api.AddFavorite(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("add favorite for product %d: %w", productID, err)
	}
	if fav.Product.ID == 0 {
		fav.Product.ID = productID
	}
	_, _ = s.st.Favorites.Update(func(cur []model.Favorite) []model.Favorite {
		out := make([]model.Favorite, 0, len(cur)+1)
		for _, f := range cur {
			if f.Product.ID != productID {
				out = append(out, f)
			}
		}
		return append(out, fav)
	})
	return true, nil
}

// LoadFavorites replaces the favorites with the server's list. On failure they are reset to empty.
func (s *Storefront) LoadFavorites(ctx context.Context) error {
	favs, err := s.api.ListFavorites(ctx)
	if err != nil {
		s.ClearFavorites()
		return fmt.Errorf("load favorites: %w", err)
	}
	if favs == nil {
		favs = []model.Favorite{}
	}
	s.set(s.st.Favorites.Set(favs))
	return nil
}

// ClearFavorites resets the local favorites without touching the server.
func (s *Storefront) ClearFavorites() {
	s.set(s.st.Favorites.Set([]model.Favorite{}))
}

// Favorites returns the favorite entries.
func (s *Storefront) Favorites() []model.Favorite { return s.st.Favorites.Get() }

// FavoriteProductIDs returns the product ids of all favorites.
func (s *Storefront) FavoriteProductIDs() []int64 { return s.st.FavoriteProductIDs.Get() }

// IsFavorite reports whether productID is a favorite.
func (s *Storefront) IsFavorite(productID int64) bool {
	_, ok := s.favoriteFor(productID)
	return ok
}

// FavoritesCount is the number of favorites.
func (s *Storefront) FavoritesCount() int { return len(s.st.Favorites.Get()) }

func (s *Storefront) favoriteFor(productID int64) (model.Favorite, bool) {
	for _, f := range s.st.Favorites.Get() {
		if f.Product.ID == productID {
			return f, true
		}
	}
	return model.Favorite{}, false
}

func (s *Storefront) dropFavorite(productID int64) {
	_, _ = s.st.Favorites.Update(func(cur []model.Favorite) []model.Favorite {
		out := make([]model.Favorite, 0, len(cur))
		for _, f := range cur {
			if f.Product.ID != productID {
				out = append(out, f)
			}
		}
		return out
	})
}

func productIDs(favs []model.Favorite) []int64 {
	ids := make([]int64, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.Product.ID)
	}
	return ids
}
