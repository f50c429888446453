package models

import "strings"

// Option is one selectable entry in a builder step or the quick menu.
type Option struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"` // extra cost; 0 for included options
}

// Size options carry the base bowl price and how many proteins are included.
type Size struct {
	Option
	MaxProteins int `json:"max_proteins"`
	MaxToppings int `json:"max_toppings"`
}

// Menu is the static poke-builder catalog. IDs are stable and unique across
// all steps so free-text selections can be resolved unambiguously.
var (
	Sizes = []Size{
		{Option: Option{ID: 1, Name: "Chico", Price: 129}, MaxProteins: 1, MaxToppings: 4},
		{Option: Option{ID: 2, Name: "Mediano", Price: 159}, MaxProteins: 2, MaxToppings: 5},
		{Option: Option{ID: 3, Name: "Grande", Price: 189}, MaxProteins: 3, MaxToppings: 6},
	}

	Bases = []Option{
		{ID: 11, Name: "Arroz blanco"},
		{ID: 12, Name: "Arroz integral"},
		{ID: 13, Name: "Mix de lechugas"},
		{ID: 14, Name: "Quinoa", Price: 15},
	}

	Proteins = []Option{
		{ID: 101, Name: "Atún"},
		{ID: 102, Name: "Salmón"},
		{ID: 103, Name: "Camarón"},
		{ID: 104, Name: "Pollo"},
		{ID: 105, Name: "Tofu"},
	}

	Toppings = []Option{
		{ID: 201, Name: "Aguacate", Price: 20},
		{ID: 202, Name: "Edamame"},
		{ID: 203, Name: "Mango"},
		{ID: 204, Name: "Pepino"},
		{ID: 205, Name: "Zanahoria"},
		{ID: 206, Name: "Alga nori"},
		{ID: 207, Name: "Ajonjolí"},
		{ID: 208, Name: "Cebollín"},
	}

	Sauces = []Option{
		{ID: 301, Name: "Soya"},
		{ID: 302, Name: "Spicy mayo"},
		{ID: 303, Name: "Ponzu"},
		{ID: 304, Name: "Teriyaki"},
	}

	// QuickMenu bowls can be added straight to checkout without the builder.
	QuickMenu = []Option{
		{ID: 401, Name: "Poke Clásico de Atún", Price: 169},
		{ID: 402, Name: "Poke de Salmón Spicy", Price: 179},
		{ID: 403, Name: "Poke Vegetariano", Price: 149},
	}
)

// FindOption looks up an option by id within a list.
func FindOption(list []Option, id int) (Option, bool) {
	for _, o := range list {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// FindSize looks up a size by id.
func FindSize(id int) (Size, bool) {
	for _, s := range Sizes {
		if s.ID == id {
			return s, true
		}
	}
	return Size{}, false
}

// MatchQuickMenu resolves a free-text product mention to a quick-menu bowl.
func MatchQuickMenu(text string) (Option, bool) {
	lower := strings.ToLower(text)
	for _, p := range QuickMenu {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			return p, true
		}
	}
	// partial match on the distinctive word (atún, salmón, vegetariano)
	for _, p := range QuickMenu {
		words := strings.Fields(strings.ToLower(p.Name))
		last := words[len(words)-1]
		if strings.Contains(lower, last) {
			return p, true
		}
	}
	return Option{}, false
}
