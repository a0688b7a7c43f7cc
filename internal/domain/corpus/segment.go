// Package corpus turns a raw corpus blob into cleaned works and answers
// exact substring queries over them.
package corpus

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// DefaultAnchor is the attribution line that opens every work in the
// Project Gutenberg complete works of Shakespeare.
const DefaultAnchor = "by william shakespeare"

// DefaultBoilerplate lists the license lines repeated throughout pg100.txt.
var DefaultBoilerplate = []string{
	"<<THIS ELECTRONIC VERSION OF THE COMPLETE WORKS OF WILLIAM",
	"SHAKESPEARE IS COPYRIGHT 1990-1993 BY WORLD LIBRARY, INC., AND IS",
	"PROVIDED BY PROJECT GUTENBERG ETEXT OF ILLINOIS BENEDICTINE COLLEGE",
	"WITH PERMISSION.  ELECTRONIC AND MACHINE READABLE COPIES MAY BE",
	"DISTRIBUTED SO LONG AS SUCH COPIES (1) ARE FOR YOUR OR OTHERS",
	"PERSONAL USE ONLY, AND (2) ARE NOT DISTRIBUTED OR USED",
	"COMMERCIALLY.  PROHIBITED COMMERCIAL DISTRIBUTION INCLUDES BY ANY",
	"SERVICE THAT CHARGES FOR DOWNLOAD TIME OR FOR MEMBERSHIP.>>",
}

// Options controls segmentation.
type Options struct {
	Anchor      string
	Boilerplate []string
}

// DefaultOptions returns the options for pg100.txt.
func DefaultOptions() Options {
	return Options{Anchor: DefaultAnchor, Boilerplate: DefaultBoilerplate}
}

type workBuilder struct {
	name  string
	text  []byte
	marks map[int]int // line index -> len(text) before that line was appended
}

// Segment splits raw into works. A line equal to the anchor (trimmed,
// case-insensitive) starts a new work whose title is picked by Title.
// Boilerplate lines are dropped, text before the first anchor is discarded,
// and the title lines that leaked into the previous work are trimmed off its tail.
// Works with no letters are omitted; duplicate titles get a numeric suffix.
func Segment(raw string, opts Options) ([]domain.Work, error) {
	anchor := strings.ToLower(strings.TrimSpace(opts.Anchor))
	if anchor == "" {
		return nil, fmt.Errorf("anchor line is required: %w", domain.ErrInvalidWork)
	}
	skip := make(map[string]struct{}, len(opts.Boilerplate))
	for _, b := range opts.Boilerplate {
		skip[strings.ToLower(strings.TrimSpace(b))] = struct{}{}
	}

	var (
		lines   []string
		current *workBuilder
		built   []*workBuilder
	)

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		idx := len(lines)
		lines = append(lines, line)
		norm := strings.ToLower(strings.TrimSpace(line))

		if norm == anchor {
			titleIdx, title := Title(lines, idx)
			if current != nil && titleIdx >= 0 {
				if mark, ok := current.marks[titleIdx]; ok {
					current.text = current.text[:mark]
				}
			}
			current = &workBuilder{name: title, marks: make(map[int]int)}
			built = append(built, current)
			continue
		}
		if _, ok := skip[norm]; ok {
			continue
		}
		if current == nil {
			continue
		}
		current.marks[idx] = len(current.text)
		current.text = appendLetters(current.text, norm)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	works := make([]domain.Work, 0, len(built))
	seen := make(map[string]int, len(built))
	for _, b := range built {
		if len(b.text) == 0 {
			continue
		}
		name := b.name
		if name == "" {
			name = "Untitled"
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = name + " " + strconv.Itoa(n)
		}
		w, err := domain.NewWork(name, string(b.text))
		if err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	return works, nil
}

// Clean lowercases raw and keeps only a-z, dropping boilerplate lines.
// It is the whole-corpus counterpart of Segment, prologue included.
func Clean(raw string, opts Options) string {
	skip := make(map[string]struct{}, len(opts.Boilerplate))
	for _, b := range opts.Boilerplate {
		skip[strings.ToLower(strings.TrimSpace(b))] = struct{}{}
	}
	out := make([]byte, 0, len(raw)/2)
	for _, line := range strings.Split(raw, "\n") {
		norm := strings.ToLower(strings.TrimSpace(line))
		if _, ok := skip[norm]; ok {
			continue
		}
		out = appendLetters(out, norm)
	}
	return string(out)
}

func appendLetters(dst []byte, lower string) []byte {
	for i := 0; i < len(lower); i++ {
		if c := lower[i]; c >= 'a' && c <= 'z' {
			dst = append(dst, c)
		}
	}
	return dst
}
