package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the limit into [1, MaxLimit], substituting DefaultLimit for
// non-positive values, and floors the offset at zero.
func (p Page) Normalize() Page {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (p Page) HasMore(total int64) bool {
	return int64(p.Offset+p.Limit) < total
}
