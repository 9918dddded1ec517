package domain

// Theme is a group of related items with a generated name and summary.
type Theme struct {
	Name    string
	Summary string
	Items   []Item
}
