// Package mockdata generates plausible demo posts for seeding a fresh
// database.
package mockdata

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/conneroisu/folio/internal/content"
)

var (
	handles    = []string{"ada", "grace", "linus", "barbara", "ken", "margaret", "dennis", "frances"}
	adjectives = []string{"Practical", "Gentle", "Unreasonable", "Small", "Honest", "Boring", "Careful"}
	nouns      = []string{"Migrations", "Schemas", "Caches", "Queues", "Indexes", "Deploys", "Backups"}
	topics     = []string{"go", "sql", "sqlite", "postgres", "http", "ops", "testing", "design"}

	sentences = []string{
		"Most of the work happens before the first line of code is written.",
		"The database outlived three rewrites of the application around it.",
		"We measured twice and were still surprised by the numbers.",
		"Nobody reads the runbook until the pager goes off at night.",
		"A smaller change shipped today beats a perfect one shipped never.",
		"The bug was in the part of the system everyone agreed was simple.",
		"Every default is a decision somebody made on your behalf.",
		"Logs are only useful if someone can find the line that matters.",
	}
)

// Generator produces demo post rows. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator whose output is fully determined by seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Posts returns n rows spread over up to authors authors. Roughly one in five
// rows is a draft or trashed so the published filter has something to do.
func (g *Generator) Posts(n, authors int) []content.PostRow {
	authors = min(max(authors, 1), len(handles))

	rows := make([]content.PostRow, 0, max(n, 0))
	for i := 0; i < n; i++ {
		tags := g.pickN(topics, 1+g.rng.Intn(3))
		title := g.title()
		rows = append(rows, content.PostRow{
			AuthorTag:   "@" + handles[g.rng.Intn(authors)],
			State:       g.state().String(),
			Title:       title,
			Content:     g.body(),
			Tags:        strings.Join(tags, ", "),
			Description: g.pick(sentences),
			Keywords:    strings.ToLower(strings.ReplaceAll(title, " ", ",")),
		})
	}
	return rows
}

func (g *Generator) state() content.State {
	switch n := g.rng.Intn(10); {
	case n < 8:
		return content.Published
	case n == 8:
		return content.Draft
	default:
		return content.Trashed
	}
}

func (g *Generator) title() string {
	return fmt.Sprintf("%s %s", g.pick(adjectives), g.pick(nouns))
}

// body is two to four paragraphs separated by blank lines.
func (g *Generator) body() string {
	paragraphs := make([]string, 2+g.rng.Intn(3))
	for i := range paragraphs {
		paragraphs[i] = strings.Join(g.pickN(sentences, 2+g.rng.Intn(2)), " ")
	}
	return strings.Join(paragraphs, "\n\n")
}

func (g *Generator) pick(from []string) string {
	return from[g.rng.Intn(len(from))]
}

// pickN returns n distinct elements of from in random order.
func (g *Generator) pickN(from []string, n int) []string {
	n = min(n, len(from))
	out := make([]string, 0, n)
	for _, i := range g.rng.Perm(len(from))[:n] {
		out = append(out, from[i])
	}
	return out
}
