package analytics

import (
	"cmp"
	"slices"
	"strings"
)

// Rule is an association X => Y between item sets.
type Rule struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Support    float64  `json:"support"`
	Confidence float64  `json:"confidence"`
	Lift       float64  `json:"lift"`
}

// AssociationRules mines frequent itemsets with Apriori and derives rules from them.
type AssociationRules struct {
	MinSupport    float64
	MinConfidence float64

	// Frequent maps an itemset key to its support.
	Frequent map[string]float64
	rules    []Rule
}

func NewAssociationRules(minSupport, minConfidence float64) *AssociationRules {
	return &AssociationRules{MinSupport: minSupport, MinConfidence: minConfidence, Frequent: map[string]float64{}}
}

const itemSep = "\x1f"

func itemsetKey(items []string) string { return strings.Join(items, itemSep) }

func itemsetOf(key string) []string { return strings.Split(key, itemSep) }

func containsAll(t map[string]struct{}, items []string) bool {
	for _, it := range items {
		if _, ok := t[it]; !ok {
			return false
		}
	}
	return true
}

// Fit finds all itemsets with support >= MinSupport and the rules between them.
func (a *AssociationRules) Fit(transactions [][]string) *AssociationRules {
	a.Frequent = map[string]float64{}
	a.rules = nil
	if len(transactions) == 0 {
		return a
	}

	sets := make([]map[string]struct{}, len(transactions))
	universe := map[string]struct{}{}
	for i, t := range transactions {
		sets[i] = make(map[string]struct{}, len(t))
		for _, it := range t {
			sets[i][it] = struct{}{}
			universe[it] = struct{}{}
		}
	}
	support := func(items []string) float64 {
		n := 0
		for _, t := range sets {
			if containsAll(t, items) {
				n++
			}
		}
		return float64(n) / float64(len(sets))
	}

	var current [][]string
	for it := range universe {
		if s := support([]string{it}); s >= a.MinSupport {
			current = append(current, []string{it})
			a.Frequent[it] = s
		}
	}

	for k := 2; len(current) > 0; k++ {
		candidates := map[string][]string{}
		for i := range current {
			for j := i + 1; j < len(current); j++ {
				union := unionSorted(current[i], current[j])
				if len(union) == k {
					candidates[itemsetKey(union)] = union
				}
			}
		}
		current = current[:0:0]
		for key, c := range candidates {
			if s := support(c); s >= a.MinSupport {
				a.Frequent[key] = s
				current = append(current, c)
			}
		}
	}

	for key, s := range a.Frequent {
		items := itemsetOf(key)
		if len(items) < 2 {
			continue
		}
		for _, ante := range properSubsets(items) {
			anteSupport := a.Frequent[itemsetKey(ante)]
			if anteSupport == 0 {
				continue
			}
			conf := s / anteSupport
			if conf < a.MinConfidence {
				continue
			}
			cons := difference(items, ante)
			var lift float64
			if cs := support(cons); cs > 0 {
				lift = conf / cs
			}
			a.rules = append(a.rules, Rule{
				Antecedent: ante,
				Consequent: cons,
				Support:    round(s, 4),
				Confidence: round(conf, 4),
				Lift:       round(lift, 4),
			})
		}
	}

	slices.SortFunc(a.rules, func(x, y Rule) int {
		if c := cmp.Compare(y.Confidence, x.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(y.Lift, x.Lift); c != 0 {
			return c
		}
		return cmp.Compare(itemsetKey(x.Antecedent)+"=>"+itemsetKey(x.Consequent),
			itemsetKey(y.Antecedent)+"=>"+itemsetKey(y.Consequent))
	})
	return a
}

// Rules returns the mined rules with lift >= minLift, highest confidence first.
func (a *AssociationRules) Rules(minLift float64) []Rule {
	out := make([]Rule, 0, len(a.rules))
	for _, r := range a.rules {
		if r.Lift >= minLift {
			out = append(out, r)
		}
	}
	return out
}

func unionSorted(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}

func difference(all, remove []string) []string {
	var out []string
	for _, it := range all {
		if !slices.Contains(remove, it) {
			out = append(out, it)
		}
	}
	return out
}

// properSubsets lists the non-empty proper subsets of a sorted itemset, each sorted.
func properSubsets(items []string) [][]string {
	n := len(items)
	var out [][]string
	for mask := 1; mask < (1<<n)-1; mask++ {
		var sub []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				sub = append(sub, items[i])
			}
		}
		out = append(out, sub)
	}
	return out
}
