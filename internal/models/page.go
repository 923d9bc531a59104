package models

// Page bounds a list query
type Page struct {
	Limit  int
	Offset int
}

// Page limits
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

// Normalize clamps the page to sane bounds
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > MaxPageLimit {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
