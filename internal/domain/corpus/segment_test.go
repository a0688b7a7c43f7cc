package corpus

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

const sampleCorpus = `Project prologue that is discarded

THE TEMPEST

by William Shakespeare

Full fathom five thy father lies.
<<THIS ELECTRONIC VERSION OF THE COMPLETE WORKS OF WILLIAM
SHAKESPEARE IS COPYRIGHT 1990-1993 BY WORLD LIBRARY, INC., AND IS
Of his bones are coral made.

ALL'S WELL THAT ENDS WELL

by William Shakespeare

Love all, trust a few.
`

func TestSegment_SplitsOnAnchor(t *testing.T) {
	works, err := Segment(sampleCorpus, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(works) != 2 {
		t.Fatalf("expected 2 works, got %d", len(works))
	}

	if works[0].Name() != "The Tempest" {
		t.Errorf("expected title %q, got %q", "The Tempest", works[0].Name())
	}
	want := "fullfathomfivethyfatherliesofhisbonesarecoralmade"
	if works[0].Text() != want {
		t.Errorf("tempest text:\ngot:  %q\nwant: %q", works[0].Text(), want)
	}

	if works[1].Name() != "Alls Well That Ends Well" {
		t.Errorf("expected title %q, got %q", "Alls Well That Ends Well", works[1].Name())
	}
	if works[1].Text() != "loveall"+"trustafew" {
		t.Errorf("unexpected second work text %q", works[1].Text())
	}
}

func TestSegment_DuplicateTitlesGetSuffix(t *testing.T) {
	raw := "SONNET\n\nby william shakespeare\nabc\nSONNET\n\nby william shakespeare\ndef\n"
	works, err := Segment(raw, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(works) != 2 {
		t.Fatalf("expected 2 works, got %d", len(works))
	}
	if works[0].Name() != "Sonnet" || works[1].Name() != "Sonnet 2" {
		t.Errorf("unexpected names %q, %q", works[0].Name(), works[1].Name())
	}
	if works[0].Text() != "abc" || works[1].Text() != "def" {
		t.Errorf("unexpected texts %q, %q", works[0].Text(), works[1].Text())
	}
}

func TestSegment_RequiresAnchor(t *testing.T) {
	_, err := Segment("text", Options{})
	if !errors.Is(err, domain.ErrInvalidWork) {
		t.Fatalf("expected ErrInvalidWork, got %v", err)
	}
}

func TestSegment_NoAnchorYieldsNoWorks(t *testing.T) {
	works, err := Segment("just some text\nwithout attribution\n", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(works) != 0 {
		t.Fatalf("expected no works, got %d", len(works))
	}
}

func TestTitle_FallbackOrder(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
		idx   int
	}{
		{
			name:  "three back",
			lines: []string{"HAMLET", "", "by william shakespeare"},
			want:  "Hamlet", idx: 0,
		},
		{
			name:  "four back when three is blank",
			lines: []string{"MACBETH", "", "", "by william shakespeare"},
			want:  "Macbeth", idx: 0,
		},
		{
			name:  "two back when three and four are blank",
			lines: []string{"", "", "OTHELLO", "by william shakespeare"},
			want:  "Othello", idx: 2,
		},
		{
			name:  "none",
			lines: []string{"", "", "", "by william shakespeare"},
			want:  "", idx: -1,
		},
		{
			name:  "start of input",
			lines: []string{"by william shakespeare"},
			want:  "", idx: -1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx, got := Title(tc.lines, len(tc.lines)-1)
			if got != tc.want || idx != tc.idx {
				t.Errorf("Title() = (%d, %q), want (%d, %q)", idx, got, tc.idx, tc.want)
			}
		})
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"the tempest", "The Tempest"},
		{"KING HENRY VIII", "King Henry Viii"},
		{"o'neil.jr", "O'Neil.Jr"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Capitalize(tc.in); got != tc.want {
			t.Errorf("Capitalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClean_KeepsPrologueAndDropsBoilerplate(t *testing.T) {
	got := Clean("Ab C!\nSERVICE THAT CHARGES FOR DOWNLOAD TIME OR FOR MEMBERSHIP.>>\nd-e", DefaultOptions())
	if got != "abcde" {
		t.Errorf("Clean() = %q, want %q", got, "abcde")
	}
}
