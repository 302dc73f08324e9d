package devapi

import (
	"fmt"

	"github.com/and161185/agrimarket/internal/model"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "harvest-2024"

// Seed loads a small demo catalog: two producers, one shopper and a handful of products.
func (s *Server) Seed() error {
	producers := []struct {
		username, farm, pref, city string
	}{
		{"tanaka_farm", "Tanaka Family Farm", "Nagano", "Azumino"},
		{"sato_orchard", "Sato Orchard", "Aomori", "Hirosaki"},
	}
	for _, p := range producers {
		u, err := s.AddUser(p.username, DemoPassword, true)
		if err != nil {
			return fmt.Errorf("seed %s: %w", p.username, err)
		}
		s.mu.Lock()
		prof := s.profiles[u.ID]
		prof.FarmName = p.farm
		prof.LocationPrefecture = p.pref
		prof.LocationCity = p.city
		s.mu.Unlock()
	}
	if _, err := s.AddUser("shopper", DemoPassword, false); err != nil {
		return fmt.Errorf("seed shopper: %w", err)
	}

	catalog := []struct {
		owner string
		p     model.Product
	}{
		{"tanaka_farm", model.Product{Name: "Organic tomatoes", Category: "vegetables", Price: "480.00", Quantity: "120", Unit: "kg", CultivationMethod: "organic_jas"}},
		{"tanaka_farm", model.Product{Name: "Koshihikari rice", Category: "grains", Price: "3200.00", Quantity: "40", Unit: "fukuro", CultivationMethod: "special"}},
		{"tanaka_farm", model.Product{Name: "Green onions", Category: "vegetables", Price: "150.00", Quantity: "200", Unit: "taba", CultivationMethod: "conventional"}},
		{"sato_orchard", model.Product{Name: "Fuji apples", Category: "fruit", Price: "2800.00", Quantity: "60", Unit: "hako", CultivationMethod: "special"}},
		{"sato_orchard", model.Product{Name: "Apple juice", Category: "processed", Price: "650.50", Quantity: "80", Unit: "ko", CultivationMethod: "natural"}},
		{"sato_orchard", model.Product{Name: "Pear preview", Category: "fruit", Price: "900.00", Quantity: "0", Unit: "ko", Status: model.ProductDraft}},
	}
	for _, c := range catalog {
		if _, err := s.AddProduct(c.owner, c.p); err != nil {
			return fmt.Errorf("seed product %q: %w", c.p.Name, err)
		}
	}
	return nil
}
