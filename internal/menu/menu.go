package menu

import (
	"errors"

	"github.com/mesaqr/api/internal/enum"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when a product id is not in the catalog.
var ErrItemNotFound = errors.New("menu item not found")

// Item is one product of the static catalog. Prices are copied into order
// lines at order time, so editing an Item never touches placed orders.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Destination string          `json:"destination"`
}

// Catalog is an ordered, read-only product list.
type Catalog struct {
	items []Item
	byID  map[string]int
}

// NewCatalog builds a catalog from items, keeping their order.
// Later duplicates of an id shadow earlier ones in lookups.
func NewCatalog(items []Item) *Catalog {
	c := &Catalog{
		items: make([]Item, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	copy(c.items, items)
	for i, it := range c.items {
		c.byID[it.ID] = i
	}
	return c
}

// Items returns a copy of the catalog in display order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Get looks up a product by id.
func (c *Catalog) Get(id string) (Item, error) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return c.items[i], nil
}

// Categories returns the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range c.items {
		if !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	return out
}

func eur(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Default is the house menu served when no other catalog is configured.
func Default() *Catalog {
	return NewCatalog([]Item{
		{ID: "cana", Name: "Caña", Price: eur("2.00"), Category: "bebidas", Destination: enum.DestinationBar},
		{ID: "tercio", Name: "Tercio", Price: eur("2.50"), Category: "bebidas", Destination: enum.DestinationBar},
		{ID: "vino-tinto", Name: "Copa de vino tinto", Price: eur("3.00"), Category: "bebidas", Destination: enum.DestinationBar},
		{ID: "refresco", Name: "Refresco", Price: eur("2.20"), Category: "bebidas", Destination: enum.DestinationBar},
		{ID: "agua", Name: "Agua", Price: eur("1.50"), Category: "bebidas", Destination: enum.DestinationBar},
		{ID: "cafe", Name: "Café", Price: eur("1.40"), Category: "bebidas", Destination: enum.DestinationBar},
		{ID: "patatas-bravas", Name: "Patatas bravas", Price: eur("4.50"), Category: "raciones", Destination: enum.DestinationKitchen},
		{ID: "patatas-fritas", Name: "Patatas fritas", Price: eur("4.00"), Category: "raciones", Destination: enum.DestinationKitchen},
		{ID: "croquetas", Name: "Croquetas caseras", Price: eur("6.50"), Category: "raciones", Destination: enum.DestinationKitchen},
		{ID: "calamares", Name: "Calamares", Price: eur("8.00"), Category: "raciones", Destination: enum.DestinationKitchen},
		{ID: "hamburguesa", Name: "Hamburguesa", Price: eur("9.50"), Category: "platos", Destination: enum.DestinationKitchen},
		{ID: "bocadillo-lomo", Name: "Bocadillo de lomo", Price: eur("5.00"), Category: "platos", Destination: enum.DestinationKitchen},
		{ID: "tarta-queso", Name: "Tarta de queso", Price: eur("4.50"), Category: "postres", Destination: enum.DestinationKitchen},
	})
}
