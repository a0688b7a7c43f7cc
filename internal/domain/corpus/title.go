package corpus

import "strings"

// titleOffsets is the fallback order for the title line, counting the anchor
// line itself as 1: three lines back, else four, else two.
//
// Tuned for pg100.txt, where a title is followed by a blank line and then the
// anchor. Other corpora will likely need a different heuristic.
var titleOffsets = []int{3, 4, 2}

// Title picks the title for the work whose anchor sits at lines[anchor].
// It returns the index of the chosen line (-1 when none qualifies) and the
// cleaned, title-cased name.
func Title(lines []string, anchor int) (int, string) {
	for _, off := range titleOffsets {
		i := anchor - off + 1
		if i < 0 || i >= len(lines) {
			continue
		}
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		return i, Capitalize(strings.TrimSpace(keepTitleChars(lines[i])))
	}
	return -1, ""
}

func keepTitleChars(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; (c >= 'a' && c <= 'z') || c == ' ' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Capitalize lowercases s and upper-cases the first letter after the start,
// whitespace, '.' or '\''.
func Capitalize(s string) string {
	b := []byte(strings.ToLower(s))
	found := false
	for i, c := range b {
		switch {
		case !found && c >= 'a' && c <= 'z':
			b[i] = c - ('a' - 'A')
			found = true
		case c == ' ' || c == '\t' || c == '\n' || c == '.' || c == '\'':
			found = false
		}
	}
	return string(b)
}
