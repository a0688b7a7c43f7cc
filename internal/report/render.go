// Package report renders coverage artifacts: a totals table, one PNG per work
// and the progress line.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"image"
	"image/color"
	"image/png"

	"github.com/dustin/go-humanize"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bitmap"
	"github.com/kailas-cloud/monkeys/internal/domain/checkpoint"
)

// Defaults.
const (
	// DefaultWidth is the PNG width in characters.
	DefaultWidth = 720
	// DefaultBatchSize is the number of candidates per iteration.
	DefaultBatchSize = 1_000_000
)

const keyPrefix = "report/"

// Artifact keys.
const (
	TotalsKey   = keyPrefix + "totals.html"
	ProgressKey = keyPrefix + "total.txt"
)

var (
	notFound = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	found    = color.RGBA{G: 0xff, A: 0xff}
	palette  = color.Palette{notFound, found}
)

// Artifact is one rendered file.
type Artifact struct {
	Key  string
	Data []byte
}

// Renderer turns coverage into artifacts.
type Renderer struct {
	width     int
	batchSize int
}

// NewRenderer creates a renderer with the default width and batch size.
func NewRenderer() *Renderer { return &Renderer{width: DefaultWidth, batchSize: DefaultBatchSize} }

// WithWidth overrides the PNG width.
func (r *Renderer) WithWidth(w int) *Renderer {
	if w > 0 {
		r.width = w
	}
	return r
}

// WithBatchSize sets the candidates per iteration used by the progress line.
func (r *Renderer) WithBatchSize(n int) *Renderer {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// PNG draws one pixel per character, row-major, width pixels per row. Found
// characters are green; unfound characters and the padding of the last row
// are white.
func (r *Renderer) PNG(b *bitmap.Bitmap) ([]byte, error) {
	rows := max((b.Len()+r.width-1)/r.width, 1)
	img := image.NewPaletted(image.Rect(0, 0, r.width, rows), palette)
	b.Runs(func(start, length int, set bool) {
		if !set {
			return
		}
		for i := start; i < start+length; i++ {
			img.Pix[(i/r.width)*img.Stride+i%r.width] = 1
		}
	})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var totalsTmpl = template.Must(template.New("totals").Parse(`<table><tr><td>Title</td><td>Percent Found</td><td>Total Chars. Found</td><td>Total Chars.</td><td>Chars. Left</td></tr>
{{range .}}<tr><td>{{.Title}}</td><td>{{.Percent}}</td><td>{{.Found}}</td><td>{{.Total}}</td><td>{{.Left}}</td></tr>
{{end}}</table>
`))

type totalsRow struct {
	Title, Percent, Found, Total, Left string
}

// Totals renders the per-work summary table in view order.
func (r *Renderer) Totals(v checkpoint.View) ([]byte, error) {
	rows := make([]totalsRow, 0, len(v.Works))
	for _, w := range v.Works {
		rows = append(rows, row(w.Coverage()))
	}
	var buf bytes.Buffer
	if err := totalsTmpl.Execute(&buf, rows); err != nil {
		return nil, fmt.Errorf("render totals: %w", err)
	}
	return buf.Bytes(), nil
}

func row(c domain.Coverage) totalsRow {
	return totalsRow{
		Title:   c.Work,
		Percent: fmt.Sprintf("%.3f%%", c.Percent()),
		Found:   humanize.Comma(int64(c.Found)),
		Total:   humanize.Comma(int64(c.Total)),
		Left:    humanize.Comma(int64(c.Remaining())),
	}
}

// Progress is the human-readable count of candidates checked after
// iterations batches of batchSize.
func Progress(iterations uint64, batchSize int) []byte {
	return []byte(fmt.Sprintf("So far checked %d\n", iterations*uint64(batchSize)))
}

// Summary is a one-line log description of a work's coverage.
func Summary(c domain.Coverage) string {
	r := row(c)
	return fmt.Sprintf("For %s found so far %s Found: %s Total: %s Left: %s", r.Title, r.Percent, r.Found, r.Total, r.Left)
}

// Render produces every artifact for the view.
func (r *Renderer) Render(v checkpoint.View) ([]Artifact, error) {
	out := make([]Artifact, 0, len(v.Works)+2)
	used := make(map[string]bool, len(v.Works))
	for _, w := range v.Works {
		data, err := r.PNG(w.Bitmap)
		if err != nil {
			return nil, fmt.Errorf("work %s: %w", w.Name, err)
		}
		out = append(out, Artifact{Key: keyPrefix + uniqueName(used, domain.Slug(w.Name)) + ".png", Data: data})
	}
	totals, err := r.Totals(v)
	if err != nil {
		return nil, err
	}
	out = append(out,
		Artifact{Key: TotalsKey, Data: totals},
		Artifact{Key: ProgressKey, Data: Progress(v.Iterations, r.batchSize)},
	)
	return out, nil
}

func uniqueName(used map[string]bool, slug string) string {
	if slug == "" {
		slug = "work"
	}
	candidate := slug
	for n := 2; used[candidate] || candidate == "totals" || candidate == "total"; n++ {
		candidate = fmt.Sprintf("%s_%d", slug, n)
	}
	used[candidate] = true
	return candidate
}
