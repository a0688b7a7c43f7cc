package domain

// Hit is a confirmed occurrence of a candidate inside a work.
type Hit struct {
	Work   string
	Offset int
	Match  string
}

// Coverage is the found/total character count for one work.
type Coverage struct {
	Work  string
	Found int
	Total int
}

// Percent returns Found/Total as a percentage. Empty works report 0.
func (c Coverage) Percent() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Found) / float64(c.Total) * 100
}

// Remaining returns the number of characters not yet found.
func (c Coverage) Remaining() int { return c.Total - c.Found }
