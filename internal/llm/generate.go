package llm

import (
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/agent-supervisor/internal/random"
)

// Parameters tune generation. A nil Temperature disables temperature shaping.
type Parameters struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// Temperature is a convenience constructor for Parameters.
func Temperature(t float64) Parameters {
	return Parameters{Temperature: &t}
}

const (
	conciseBelow = 0.3
	verboseAbove = 0.7
	dateLayout   = "Monday, January 2"
)

var (
	slotPattern   = regexp.MustCompile(`\{\{(\w+)\}\}`)
	hedgePattern  = regexp.MustCompile(`I've|I can|I'll`)
	productAbout  = regexp.MustCompile(`about the ([a-zA-Z0-9\s]+)`)
	productSuffix = regexp.MustCompile(`([a-zA-Z0-9\s]+) features`)
	issueAbout    = regexp.MustCompile(`about ([a-zA-Z0-9\s]+)`)
	issueSuffix   = regexp.MustCompile(`([a-zA-Z0-9\s]+) problem`)
)

// Generator fills response templates. All randomness comes from the injected
// source and all dates from the injected clock.
type Generator struct {
	catalog *Catalog
	rnd     random.Source
	now     func() time.Time
}

// NewGenerator creates a generator. A nil catalog uses DefaultCatalog and a nil
// now uses time.Now.
func NewGenerator(catalog *Catalog, rnd random.Source, now func() time.Time) *Generator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{catalog: catalog, rnd: rnd, now: now}
}

// Generate produces a reply for intent, using source to fill content-derived slots.
func (g *Generator) Generate(intent Intent, source string, params Parameters) string {
	templates := g.catalog.TemplatesFor(intent)
	if len(templates) == 0 {
		return ""
	}
	template := random.Pick(g.rnd, templates)
	response := FillSlots(template, g.slotValues(intent, source))

	if t := params.Temperature; t != nil {
		switch {
		case *t < conciseBelow:
			response = concise(response)
		case *t > verboseAbove:
			response += random.Pick(g.rnd, g.catalog.Closings)
		}
	}
	return response
}

func (g *Generator) slotValues(intent Intent, source string) map[string]string {
	pools := g.catalog.Slots
	switch intent {
	case IntentShipping:
		status := random.Pick(g.rnd, pools.Statuses)
		days := g.rnd.IntN(pools.MaxDeliveryDays) + 1
		return map[string]string{
			"status": status,
			"date":   g.now().AddDate(0, 0, days).Format(dateLayout),
		}
	case IntentReturns:
		return map[string]string{
			"instruction": random.Pick(g.rnd, pools.Instructions),
			"timeframe":   random.Pick(g.rnd, pools.Timeframes),
		}
	case IntentProduct:
		product, ok := ExtractProduct(source)
		if !ok {
			product = pools.DefaultProduct
		}
		features := pickDistinct(g.rnd, pools.Features, 3)
		return map[string]string{
			"product":       product,
			"feature1":      features[0],
			"feature2":      features[1],
			"feature3":      features[2],
			"compatibility": random.Pick(g.rnd, pools.Compatibilities),
			"purpose":       pools.Purpose,
		}
	default:
		issue, ok := ExtractIssue(source)
		if !ok {
			issue = pools.DefaultIssue
		}
		return map[string]string{
			"issue":    issue,
			"solution": random.Pick(g.rnd, pools.Solutions),
		}
	}
}

// ExtractProduct finds a product name in phrases like "about the X" or "X features".
func ExtractProduct(text string) (string, bool) {
	return firstSubmatch(text, productAbout, productSuffix)
}

// ExtractIssue finds an issue in phrases like "about X" or "X problem".
func ExtractIssue(text string) (string, bool) {
	return firstSubmatch(text, issueAbout, issueSuffix)
}

func firstSubmatch(text string, patterns ...*regexp.Regexp) (string, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// pickDistinct draws n distinct items without replacement.
func pickDistinct(rnd random.Source, items []string, n int) []string {
	pool := append([]string(nil), items...)
	out := make([]string, 0, n)
	for i := 0; i < n && len(pool) > 0; i++ {
		j := rnd.IntN(len(pool))
		out = append(out, pool[j])
		pool = append(pool[:j], pool[j+1:]...)
	}
	return out
}

// FillSlots replaces every {{name}} slot that has a value. Unknown slots are left as is.
func FillSlots(template string, values map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(template, func(slot string) string {
		name := slotPattern.FindStringSubmatch(slot)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return slot
	})
}

// concise drops the first hedge phrase and keeps only the first sentence.
func concise(response string) string {
	loc := hedgePattern.FindStringIndex(response)
	if loc != nil {
		response = response[:loc[0]] + response[loc[1]:]
	}
	response = strings.TrimSpace(response)
	first, _, _ := strings.Cut(response, ".")
	return first + "."
}
