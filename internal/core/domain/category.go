package domain

type Subcategory struct {
	ID   string `json:"id" yaml:"id"`
	Slug string `json:"slug" yaml:"slug"`
	Name string `json:"name" yaml:"name"`
}

// Category is a spend category. Invoices live in exactly one category and
// line items are reclassified between categories, never subcategories.
type Category struct {
	ID            string        `json:"id" yaml:"id"`
	Slug          string        `json:"slug" yaml:"slug"`
	Name          string        `json:"name" yaml:"name"`
	Subcategories []Subcategory `json:"subcategories,omitempty" yaml:"subcategories"`
}
