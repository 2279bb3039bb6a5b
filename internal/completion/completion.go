// Package completion suggests the next token of a shell line from the
// command table and, where the table says an entity name belongs, from a
// live listing bounded by a short timeout.
package completion

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/internal/telemetry"
)

// DefaultTimeout bounds the live entity fetch.
const DefaultTimeout = 300 * time.Millisecond

// Table is the static side of completion. Given the tokens before the one
// being completed, it returns the fixed candidates for that position and
// the entity kind whose names may also appear there (KindNone for none).
type Table interface {
	Candidates(prior []string) ([]string, engine.Kind)
}

// Words is a flat vocabulary: candidates for the first token only.
type Words []string

// Candidates implements Table.
func (w Words) Candidates(prior []string) ([]string, engine.Kind) {
	if len(prior) > 0 {
		return nil, engine.KindNone
	}
	return w, engine.KindNone
}

// Lister fetches live entities. engine.Engine satisfies it.
type Lister interface {
	ListEntities(ctx context.Context, kind engine.Kind) ([]engine.Entity, error)
}

// Options configure a Completer.
type Options struct {
	Timeout   time.Duration
	Logger    logger.Logger
	Telemetry *telemetry.Collector
}

// Completer answers completion requests for one shell session.
type Completer struct {
	table   Table
	lister  Lister
	timeout time.Duration
	log     logger.Logger
	tel     *telemetry.Collector
}

// New creates a Completer. A nil lister means static completion only.
func New(table Table, lister Lister, opts Options) *Completer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Completer{
		table:   table,
		lister:  lister,
		timeout: opts.Timeout,
		log:     logger.OrDefault(opts.Logger),
		tel:     opts.Telemetry,
	}
}

// Complete returns the candidates for the last token of input, matched by
// case-insensitive prefix and returned in their own case, de-duplicated
// and sorted case-insensitively. A failed or slow live fetch only narrows
// the result to the static candidates.
func (c *Completer) Complete(ctx context.Context, input string) []string {
	prior, partial := Split(input)
	static, kind := c.table.Candidates(prior)

	pool := append([]string(nil), static...)
	if kind != engine.KindNone && c.lister != nil {
		pool = append(pool, c.live(ctx, kind)...)
	}
	return Match(pool, partial)
}

func (c *Completer) live(ctx context.Context, kind engine.Kind) []string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	entities, err := c.lister.ListEntities(ctx, kind)
	if err != nil {
		c.tel.CompletionFallback()
		c.log.Debug("live completion unavailable, using static words: %v", err)
		return nil
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return names
}

// Match filters pool to the entries starting with partial, ignoring case,
// then de-duplicates and sorts them.
func Match(pool []string, partial string) []string {
	want := strings.ToLower(partial)
	seen := make(map[string]bool, len(pool))
	out := make([]string, 0, len(pool))
	for _, cand := range pool {
		if seen[cand] || !strings.HasPrefix(strings.ToLower(cand), want) {
			continue
		}
		seen[cand] = true
		out = append(out, cand)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// Split separates input into the finished tokens and the one being typed.
// Trailing whitespace means a new, empty token has started.
func Split(input string) (prior []string, partial string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil, ""
	}
	if last, _ := utf8.DecodeLastRuneInString(input); unicode.IsSpace(last) {
		return fields, ""
	}
	return fields[:len(fields)-1], fields[len(fields)-1]
}

// Apply replaces the token being typed with candidate and starts the next
// one.
func Apply(input, candidate string) string {
	prior, _ := Split(input)
	return strings.Join(append(prior, candidate), " ") + " "
}

// CommonPrefix returns the longest prefix shared by every candidate,
// compared without case and returned in the first candidate's case.
func CommonPrefix(cands []string) string {
	if len(cands) == 0 {
		return ""
	}
	prefix := []rune(cands[0])
	for _, c := range cands[1:] {
		r := []rune(c)
		n := 0
		for n < len(prefix) && n < len(r) && unicode.ToLower(prefix[n]) == unicode.ToLower(r[n]) {
			n++
		}
		prefix = prefix[:n]
	}
	return string(prefix)
}
