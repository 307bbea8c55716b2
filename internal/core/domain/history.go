package domain

// DefaultHistoryCap is the number of results a history retains.
const DefaultHistoryCap = 20

// History is a newest-first, capped list of round results.
type History []RoundResult

// Record prepends r and evicts anything past limit. A non-positive limit uses DefaultHistoryCap.
func (h History) Record(r RoundResult, limit int) History {
	if limit <= 0 {
		limit = DefaultHistoryCap
	}
	next := make(History, 0, min(len(h)+1, limit))
	next = append(next, r)
	for _, old := range h {
		if len(next) == limit {
			break
		}
		next = append(next, old)
	}
	return next
}

// TallyBySide counts retained results that landed on side.
func (h History) TallyBySide(side Side) int {
	n := 0
	for _, r := range h {
		if r.Side == side {
			n++
		}
	}
	return n
}

// Tally holds per-side counts over retained history.
type Tally struct {
	Big   int `json:"big"`
	Small int `json:"small"`
}

// Tally counts both sides at once.
func (h History) Tally() Tally {
	return Tally{Big: h.TallyBySide(SideBig), Small: h.TallyBySide(SideSmall)}
}
