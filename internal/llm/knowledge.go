package llm

import (
	_ "embed"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/ashureev/agent-supervisor/internal/random"
	"gopkg.in/yaml.v3"
)

//go:embed data/knowledge.yaml
var defaultKnowledgeYAML []byte

// DefaultKnowledgeLimit is used when a query does not specify a limit.
const DefaultKnowledgeLimit = 3

// KnowledgeEntry is one snippet of support documentation.
type KnowledgeEntry struct {
	Text          string `yaml:"text" json:"text"`
	Source        string `yaml:"source" json:"source"`
	Section       string `yaml:"section" json:"section"`
	KnowledgeBase string `yaml:"knowledgeBase" json:"knowledgeBase"`
}

// KnowledgeResult is an entry scored against a query.
type KnowledgeResult struct {
	KnowledgeEntry
	Relevance float64 `json:"relevance"`
}

// KnowledgeBase scores entries by word overlap with a query.
type KnowledgeBase struct {
	entries []KnowledgeEntry
	rnd     random.Source
}

// NewKnowledgeBase creates a knowledge base over entries. Nil entries load the built-in set.
func NewKnowledgeBase(entries []KnowledgeEntry, rnd random.Source) (*KnowledgeBase, error) {
	if entries == nil {
		if err := yaml.Unmarshal(defaultKnowledgeYAML, &entries); err != nil {
			return nil, fmt.Errorf("decode knowledge entries: %w", err)
		}
	}
	return &KnowledgeBase{entries: entries, rnd: rnd}, nil
}

// Retrieve returns up to limit entries ordered by relevance. When bases is
// non-empty only entries from those knowledge bases are considered.
func (kb *KnowledgeBase) Retrieve(query string, bases []string, limit int) []KnowledgeResult {
	if limit <= 0 {
		limit = DefaultKnowledgeLimit
	}
	words := strings.Fields(strings.ToLower(query))

	results := make([]KnowledgeResult, 0, len(kb.entries))
	for _, entry := range kb.entries {
		if len(bases) > 0 && !slices.Contains(bases, entry.KnowledgeBase) {
			continue
		}
		results = append(results, KnowledgeResult{
			KnowledgeEntry: entry,
			Relevance:      kb.score(words, strings.ToLower(entry.Text)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (kb *KnowledgeBase) score(words []string, text string) float64 {
	var score float64
	for _, w := range words {
		if len(w) > 3 && strings.Contains(text, w) {
			score += 0.2
		}
	}
	for i := 0; i+1 < len(words); i++ {
		if strings.Contains(text, words[i]+" "+words[i+1]) {
			score += 0.3
		}
	}
	score += kb.rnd.Float64() * 0.3
	score = min(0.95, score)
	return math.Round(score*100) / 100
}
