// Package keyword assigns budget categories by substring keywords, checking
// categories in a fixed priority order.
package keyword

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/kakeibo/internal/core/domain"
)

// Rule lists the keywords of one category. Rules earlier in a rule set win
// ties against later ones.
type Rule struct {
	Category domain.Category `yaml:"category"`
	Keywords []string        `yaml:"keywords"`
}

type ruleFile struct {
	Categories []Rule `yaml:"categories"`
}

func DefaultRules() []Rule {
	return []Rule{
		{Category: domain.CategoryEssential, Keywords: []string{"grocery", "rent", "utilities", "water", "electricity"}},
		{Category: domain.CategoryWants, Keywords: []string{"restaurant", "cinema", "entertainment"}},
		{Category: domain.CategoryIncome, Keywords: []string{"salary", "deposit"}},
		{Category: domain.CategorySavings, Keywords: []string{"investment", "savings"}},
	}
}

// LoadRules reads rules from a YAML file of the form
//
//	categories:
//	  - category: ESSENTIAL
//	    keywords: [grocery, rent]
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category rules: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode category rules: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("category rules %s: no categories defined", path)
	}
	return file.Categories, nil
}

// Categorizer matches every keyword in one Aho-Corasick pass and resolves
// multiple hits by rule order. The matcher keeps per-scan state, so scans
// are serialized.
type Categorizer struct {
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	priority []int
	rules    []Rule
}

func New(rules []Rule) (*Categorizer, error) {
	c := &Categorizer{rules: rules}

	var patterns [][]byte
	seen := make(map[string]struct{})
	for i, rule := range rules {
		if !rule.Category.Valid() || rule.Category == domain.CategoryOther {
			return nil, fmt.Errorf("rule %d: unsupported category %q", i, rule.Category)
		}
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			// First occurrence keeps the highest-priority category.
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			patterns = append(patterns, []byte(kw))
			c.priority = append(c.priority, i)
		}
	}
	if len(patterns) > 0 {
		c.matcher = ahocorasick.NewMatcher(patterns)
	}
	return c, nil
}

func NewDefault() *Categorizer {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Categorizer) Categorize(description string) domain.Category {
	if c.matcher == nil {
		return domain.CategoryOther
	}
	c.mu.Lock()
	hits := c.matcher.Match([]byte(strings.ToLower(description)))
	c.mu.Unlock()
	if len(hits) == 0 {
		return domain.CategoryOther
	}

	best := -1
	for _, hit := range hits {
		rank := c.priority[hit]
		if best < 0 || rank < best {
			best = rank
		}
	}
	return c.rules[best].Category
}
