package devapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/and161185/agrimarket/internal/model"
)

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	pref := q.Get("location_prefecture")
	city := q.Get("location_city")

	s.mu.RLock()
	var out []model.Profile
	for _, p := range s.profiles {
		if !p.IsProducer {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Username+" "+p.FarmName+" "+p.Bio), search) {
			continue
		}
		if pref != "" && !strings.EqualFold(pref, p.LocationPrefecture) {
			continue
		}
		if city != "" && !strings.EqualFold(city, p.LocationCity) {
			continue
		}
		out = append(out, *p)
	}
	s.mu.RUnlock()

	ordering := q.Get("ordering")
	sort.SliceStable(out, func(i, j int) bool {
		switch ordering {
		case "farm_name":
			return out[i].FarmName < out[j].FarmName
		case "-farm_name":
			return out[i].FarmName > out[j].FarmName
		case "created_at":
			return out[i].ID < out[j].ID
		default:
			return out[i].ID > out[j].ID
		}
	})
	writeJSON(w, http.StatusOK, paginate(r, out))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "username"))
	s.mu.RLock()
	id, ok := s.byName[name]
	var p model.Profile
	if ok {
		p = *s.profiles[id]
	}
	s.mu.RUnlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMyProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	s.mu.RLock()
	p := *s.profiles[uid]
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	form, image, err := readForm(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form")
		return
	}
	if v := form["website_url"]; v != "" && !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		writeFields(w, map[string][]string{"website_url": {"Enter a valid URL."}})
		return
	}

	uid, _ := UserIDFromCtx(r.Context())
	s.mu.Lock()
	p := s.profiles[uid]
	set := func(dst *string, k string) {
		if v, ok := form[k]; ok {
			*dst = v
		}
	}
	set(&p.FarmName, "farm_name")
	set(&p.LocationPrefecture, "location_prefecture")
	set(&p.LocationCity, "location_city")
	set(&p.Bio, "bio")
	set(&p.WebsiteURL, "website_url")
	set(&p.CertificationInfo, "certification_info")
	if image != "" {
		p.Image = "/media/profiles/" + image
	}
	p.UpdatedAt = s.now()
	out := *p
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}
