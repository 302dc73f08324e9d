package devapi

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/agrimarket/internal/model"
)

const maxFormMemory = 8 << 20

var (
	validUnits = map[string]string{
		"kg": "kilogram", "g": "gram", "ko": "piece", "fukuro": "bag", "hako": "box", "taba": "bunch",
	}
	validCultivation = map[string]bool{
		"conventional": true, "special": true, "organic": true, "organic_jas": true, "natural": true,
	}
	validStatus = map[model.ProductStatus]bool{
		model.ProductDraft: true, model.ProductPending: true, model.ProductActive: true, model.ProductInactive: true,
	}
)

// AddProduct stores p as owned by producer and returns the stored copy.
func (s *Server) AddProduct(producer string, p model.Product) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[strings.ToLower(producer)]; !ok {
		return model.Product{}, errors.New("unknown producer")
	}
	now := s.now()
	p.ID = s.nextID()
	p.ProducerUsername = producer
	if p.Status == "" {
		p.Status = model.ProductActive
	}
	if p.Quantity == "" {
		p.Quantity = "0"
	}
	if p.UnitDisplay == "" {
		p.UnitDisplay = validUnits[p.Unit]
	}
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = &p
	return p, nil
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid, authed := UserIDFromCtx(r.Context())

	s.mu.RLock()
	owner := ""
	if q.Get("owner") == "me" && authed {
		owner = s.users[uid].Username
	}
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		if owner != "" {
			if p.ProducerUsername != owner {
				continue
			}
		} else if p.Status != model.ProductActive {
			continue
		}
		if !matchProduct(*p, q) {
			continue
		}
		out = append(out, *p)
	}
	s.mu.RUnlock()

	sortProducts(out, q.Get("ordering"))
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n < len(out) {
		out = out[:n]
	}
	writeJSON(w, http.StatusOK, out)
}

func matchProduct(p model.Product, q map[string][]string) bool {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	if s := strings.ToLower(get("search")); s != "" {
		hay := strings.ToLower(p.Name + " " + p.Description + " " + p.Category)
		if !strings.Contains(hay, s) {
			return false
		}
	}
	if c := get("category"); c != "" && !strings.EqualFold(c, p.Category) {
		return false
	}
	if u := get("producer_username"); u != "" && !strings.EqualFold(u, p.ProducerUsername) {
		return false
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		price = decimal.Zero
	}
	if v, err := decimal.NewFromString(get("min_price")); err == nil && price.LessThan(v) {
		return false
	}
	if v, err := decimal.NewFromString(get("max_price")); err == nil && price.GreaterThan(v) {
		return false
	}
	if methods := q["cultivation_method"]; len(methods) > 0 {
		found := false
		for _, m := range methods {
			if m == p.CultivationMethod {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortProducts(ps []model.Product, ordering string) {
	if ordering == "" {
		ordering = "-created_at"
	}
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")
	less := func(a, b model.Product) bool {
		switch field {
		case "price":
			pa, _ := decimal.NewFromString(a.Price)
			pb, _ := decimal.NewFromString(b.Price)
			if !pa.Equal(pb) {
				return pa.LessThan(pb)
			}
		case "updated_at":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if desc {
			return less(ps[j], ps[i])
		}
		return less(ps[i], ps[j])
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	s.mu.RLock()
	p, found := s.products[id]
	var out model.Product
	if found {
		out = *p
	}
	s.mu.RUnlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	s.mu.RLock()
	acc := s.users[uid]
	producer, username := acc.IsProducer, acc.Username
	s.mu.RUnlock()
	if !producer {
		writeDetail(w, http.StatusForbidden, "Only producers can create products.")
		return
	}

	form, image, err := readForm(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form")
		return
	}
	p := model.Product{Status: model.ProductDraft}
	if fields := applyProductForm(&p, form, true); len(fields) > 0 {
		writeFields(w, fields)
		return
	}
	if image != "" {
		p.Image = "/media/products/" + image
	}
	out, err := s.AddProduct(username, p)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	form, image, err := readForm(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form")
		return
	}
	s.ownedProduct(w, r, func(p *model.Product) (int, any) {
		next := *p
		if fields := applyProductForm(&next, form, false); len(fields) > 0 {
			return http.StatusBadRequest, fields
		}
		if image != "" {
			next.Image = "/media/products/" + image
		}
		next.UpdatedAt = s.now()
		*p = next
		return http.StatusOK, next
	})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	s.ownedProduct(w, r, func(p *model.Product) (int, any) {
		delete(s.products, p.ID)
		for id, f := range s.favorites {
			if f.productID == p.ID {
				delete(s.favorites, id)
			}
		}
		return http.StatusNoContent, nil
	})
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.ProductStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	s.ownedProduct(w, r, func(p *model.Product) (int, any) {
		if !validStatus[body.Status] {
			return http.StatusBadRequest, map[string][]string{"status": {"Invalid status."}}
		}
		p.Status = body.Status
		p.UpdatedAt = s.now()
		return http.StatusOK, *p
	})
}

// ownedProduct runs fn under the write lock when the caller owns the product in the path.
func (s *Server) ownedProduct(w http.ResponseWriter, r *http.Request, fn func(*model.Product) (int, any)) {
	id, ok := pathInt(r, "id")
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	uid, _ := UserIDFromCtx(r.Context())

	s.mu.Lock()
	p, found := s.products[id]
	if !found {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if p.ProducerUsername != s.users[uid].Username {
		s.mu.Unlock()
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return
	}
	status, body := fn(p)
	s.mu.Unlock()

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, body)
}

func applyProductForm(p *model.Product, form map[string]string, create bool) map[string][]string {
	fields := map[string][]string{}
	required := func(k string) {
		if create && form[k] == "" {
			fields[k] = append(fields[k], "This field is required.")
		}
	}
	required("name")
	required("price")
	required("unit")

	if v, ok := form["name"]; ok && v != "" {
		p.Name = v
	}
	if v, ok := form["description"]; ok {
		p.Description = v
	}
	if v, ok := form["category"]; ok {
		p.Category = v
	}
	if v := form["price"]; v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			fields["price"] = append(fields["price"], "A valid number is required.")
		} else {
			p.Price = d.StringFixed(2)
		}
	}
	if v := form["quantity"]; v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			fields["quantity"] = append(fields["quantity"], "A valid number is required.")
		} else {
			p.Quantity = d.String()
		}
	}
	if v := form["unit"]; v != "" {
		if display, ok := validUnits[v]; ok {
			p.Unit, p.UnitDisplay = v, display
		} else {
			fields["unit"] = append(fields["unit"], `"`+v+`" is not a valid choice.`)
		}
	}
	if v := form["cultivation_method"]; v != "" {
		if validCultivation[v] {
			p.CultivationMethod = v
		} else {
			fields["cultivation_method"] = append(fields["cultivation_method"], `"`+v+`" is not a valid choice.`)
		}
	}
	if v := form["status"]; v != "" {
		if validStatus[model.ProductStatus(v)] {
			p.Status = model.ProductStatus(v)
		} else {
			fields["status"] = append(fields["status"], `"`+v+`" is not a valid choice.`)
		}
	}
	return fields
}

// readForm accepts multipart and urlencoded bodies. It returns the flat fields and the
// uploaded image's base name, if any.
func readForm(r *http.Request) (map[string]string, string, error) {
	err := r.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, "", err
	}
	out := map[string]string{}
	for k, v := range r.Form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	var image string
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				return nil, "", err
			}
			_, _ = io.Copy(io.Discard, f)
			_ = f.Close()
			image = filepath.Base(files[0].Filename)
		}
	}
	return out, image, nil
}

func pathInt(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
