// Package router picks the smallest set of context blocks a reply needs,
// based on the classified intent. Rules are compiled once from configuration
// and evaluated top-down; anything unmatched or malformed falls back to the
// full block set.
package router

import (
	"strings"

	"github.com/MikeSquared-Agency/recall/internal/config"
	"github.com/MikeSquared-Agency/recall/internal/memory"
)

// RuleFull is the terminal fallback rule. It always exists and always
// selects every configured block.
const RuleFull = "full"

// Decision reports which blocks were selected for one request and what the
// selection costs. Derived per request, never persisted.
type Decision struct {
	Rule       string   `json:"rule"`
	Blocks     []string `json:"blocks"`
	Tokens     int      `json:"estimated_tokens"`
	FullTokens int      `json:"full_tokens"`
	Saved      float64  `json:"saved"` // fraction of the full-set cost avoided
}

type rule struct {
	name    string
	intents map[string]struct{}
	blocks  []string
	tokens  int
}

// Router holds the compiled rule list. Construction happens once at startup;
// Select is read-only and safe for concurrent use.
type Router struct {
	rules      []rule
	allBlocks  []string
	fullTokens int
}

// Compile builds the router from a validated config file. Block order within
// a decision always follows the config's block table, so equal inputs yield
// byte-equal decisions.
func Compile(f *config.File) *Router {
	costs := make(map[string]int, len(f.Contexts))
	order := make([]string, 0, len(f.Contexts))
	full := 0
	for _, b := range f.Contexts {
		costs[b.Name] = b.Tokens
		order = append(order, b.Name)
		full += b.Tokens
	}

	r := &Router{allBlocks: order, fullTokens: full}
	for _, cr := range f.Routing.Rules {
		intents := make(map[string]struct{}, len(cr.Intents))
		for _, in := range cr.Intents {
			intents[strings.ToLower(strings.TrimSpace(in))] = struct{}{}
		}

		selected := make(map[string]bool, len(cr.Blocks))
		for _, name := range cr.Blocks {
			selected[name] = true
		}
		blocks := make([]string, 0, len(cr.Blocks))
		tokens := 0
		for _, name := range order {
			if selected[name] {
				blocks = append(blocks, name)
				tokens += costs[name]
			}
		}

		r.rules = append(r.rules, rule{name: cr.Name, intents: intents, blocks: blocks, tokens: tokens})
	}
	return r
}

// Select maps a classification to a routing decision. The first rule whose
// intent set contains the classified intent wins; everything else — unknown
// intents, empty intents, a router compiled from an empty block table —
// resolves to the full set with zero savings.
func (r *Router) Select(c memory.Classification) Decision {
	if r == nil || len(r.allBlocks) == 0 {
		return Decision{Rule: RuleFull}
	}

	intent := strings.ToLower(strings.TrimSpace(c.Intent))
	if intent != "" {
		for _, rule := range r.rules {
			if _, ok := rule.intents[intent]; ok {
				return Decision{
					Rule:       rule.name,
					Blocks:     append([]string(nil), rule.blocks...),
					Tokens:     rule.tokens,
					FullTokens: r.fullTokens,
					Saved:      r.saved(rule.tokens),
				}
			}
		}
	}

	return Decision{
		Rule:       RuleFull,
		Blocks:     append([]string(nil), r.allBlocks...),
		Tokens:     r.fullTokens,
		FullTokens: r.fullTokens,
		Saved:      0,
	}
}

func (r *Router) saved(tokens int) float64 {
	if r.fullTokens == 0 {
		return 0
	}
	return 1 - float64(tokens)/float64(r.fullTokens)
}
