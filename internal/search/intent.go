package search

import "strings"

// Intent is the detected purpose of a query.
type Intent string

const (
	IntentDefinition Intent = "definition"
	IntentProcedure  Intent = "procedure"
	IntentSummary    Intent = "summary"
	IntentExample    Intent = "example"
	IntentGeneral    Intent = "general"
)

// Phrase sets checked in fixed priority order; the first matching
// intent wins.
var intentPhrases = []struct {
	intent  Intent
	phrases []string
}{
	{IntentDefinition, []string{"what is", "define", "definition of", "meaning of", "theorem", "lemma"}},
	{IntentProcedure, []string{"how to", "steps to", "procedure for", "process of"}},
	{IntentSummary, []string{"summary", "overview", "explain chapter", "summarize"}},
	{IntentExample, []string{"example", "illustration", "case study", "walkthrough"}},
}

// DetectIntent classifies a query by phrase matching over its
// lowercase form. Deterministic and stateless.
func DetectIntent(query string) Intent {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, set := range intentPhrases {
		for _, phrase := range set.phrases {
			if strings.Contains(q, phrase) {
				return set.intent
			}
		}
	}
	return IntentGeneral
}

// DepthMultiplier is how many times the display limit each retrieval
// list fetches. Precision intents fetch shallow, Summary fetches deep.
func (i Intent) DepthMultiplier() int {
	switch i {
	case IntentDefinition, IntentProcedure:
		return 3
	case IntentSummary:
		return 6
	default:
		return 4
	}
}

// FusionWeights is the semantic/keyword credit split for the intent.
func (i Intent) FusionWeights() Weights {
	switch i {
	case IntentDefinition, IntentProcedure:
		return Weights{Semantic: 0.35, Keyword: 0.65}
	case IntentSummary:
		return Weights{Semantic: 0.7, Keyword: 0.3}
	default:
		return Weights{Semantic: 0.5, Keyword: 0.5}
	}
}

// StabilityMultiplier scales the stability reinforcement. Precision
// intents lean hardest on a historically stable ordering.
func (i Intent) StabilityMultiplier() float64 {
	switch i {
	case IntentDefinition:
		return 2.0
	case IntentProcedure:
		return 1.5
	case IntentSummary:
		return 1.0
	default:
		return 0.5
	}
}
