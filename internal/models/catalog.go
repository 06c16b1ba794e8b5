package models

// Category represents an award category voters pick nominees for
type Category struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Order         int    `yaml:"order" json:"order"`
	MaxSelections int    `yaml:"maxSelections" json:"maxSelections"`
}

// Person represents a nominee selectable in any category
type Person struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Catalog is the read-only category and person table loaded at startup.
// Categories are kept in display order, people in listing order.
type Catalog struct {
	Categories []Category `json:"categories"`
	People     []Person   `json:"people"`

	categoryIndex map[string]int
	personIndex   map[string]int
}

// NewCatalog builds a catalog from already ordered categories and people
func NewCatalog(categories []Category, people []Person) *Catalog {
	c := &Catalog{
		Categories:    categories,
		People:        people,
		categoryIndex: make(map[string]int, len(categories)),
		personIndex:   make(map[string]int, len(people)),
	}
	for i, cat := range categories {
		c.categoryIndex[cat.ID] = i
	}
	for i, p := range people {
		c.personIndex[p.ID] = i
	}
	return c
}

// Category returns a category by ID
func (c *Catalog) Category(id string) (Category, bool) {
	i, ok := c.categoryIndex[id]
	if !ok {
		return Category{}, false
	}
	return c.Categories[i], true
}

// Person returns a person by ID
func (c *Catalog) Person(id string) (Person, bool) {
	i, ok := c.personIndex[id]
	if !ok {
		return Person{}, false
	}
	return c.People[i], true
}

// PersonName returns the display name, falling back to the ID for unknown people
func (c *Catalog) PersonName(id string) string {
	if p, ok := c.Person(id); ok {
		return p.Name
	}
	return id
}

// PersonPosition returns the listing position of a person, or -1 if unknown
func (c *Catalog) PersonPosition(id string) int {
	if i, ok := c.personIndex[id]; ok {
		return i
	}
	return -1
}
