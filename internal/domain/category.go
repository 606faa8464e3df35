package domain

// Category is one entry of the spending taxonomy.
type Category struct {
	ID     string
	Name   string
	Slug   string
	Active bool
}
