package devapi

import (
	"net/http"
	"sort"

	"github.com/and161185/agrimarket/internal/model"
)

func (s *Server) favoriteView(f *favoriteRow) (model.Favorite, bool) {
	p, ok := s.products[f.productID]
	if !ok {
		return model.Favorite{}, false
	}
	return model.Favorite{ID: f.id, Product: *p, CreatedAt: f.createdAt}, true
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	s.mu.RLock()
	out := make([]model.Favorite, 0)
	for _, f := range s.favorites {
		if f.userID != uid {
			continue
		}
		if v, ok := s.favoriteView(f); ok {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int64 `json:"product_id"`
	}
	if err := decodeJSON(r, &body); err != nil || body.ProductID <= 0 {
		writeFields(w, map[string][]string{"product_id": {"This field is required."}})
		return
	}
	uid, _ := UserIDFromCtx(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[body.ProductID]
	if !ok || p.Status != model.ProductActive {
		writeFields(w, map[string][]string{"product_id": {"No valid product found."}})
		return
	}
	for _, f := range s.favorites {
		if f.userID == uid && f.productID == body.ProductID {
			writeFields(w, map[string][]string{"product_id": {"This product is already in your favorites."}})
			return
		}
	}
	f := &favoriteRow{id: s.nextID(), userID: uid, productID: body.ProductID, createdAt: s.now()}
	s.favorites[f.id] = f
	v, _ := s.favoriteView(f)
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	uid, _ := UserIDFromCtx(r.Context())

	s.mu.Lock()
	f, found := s.favorites[id]
	if ok && found && f.userID == uid {
		delete(s.favorites, id)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mu.Unlock()
	writeDetail(w, http.StatusNotFound, "Not found.")
}
