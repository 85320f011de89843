package botserver

import (
	"context"
	"errors"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

const DefaultConfidenceThreshold = 60

// Match is the outcome of intent lookup. Intent is nil when nothing scored at
// or above the threshold.
type Match struct {
	Intent *Intent
	Score  int
	Exact  bool
}

// Matcher finds the intent for a question: an exact variation match first,
// then the best fuzzy token-sort score over all normalized variations.
type Matcher struct {
	store     Store
	threshold int
}

func NewMatcher(store Store, threshold int) *Matcher {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Matcher{store: store, threshold: threshold}
}

func (m *Matcher) Threshold() int {
	return m.threshold
}

func (m *Matcher) Match(ctx context.Context, question string) (Match, error) {
	key := strings.ToLower(strings.TrimSpace(question))
	if key == "" {
		return Match{}, nil
	}

	in, err := m.store.IntentByVariation(ctx, key)
	switch {
	case err == nil:
		return Match{Intent: in, Score: 100, Exact: true}, nil
	case !errors.Is(err, ErrNotFound):
		return Match{}, err
	}

	normalized := Normalize(question)
	if normalized == "" {
		return Match{}, nil
	}

	variations, err := m.store.Variations(ctx)
	if err != nil {
		return Match{}, err
	}

	best, bestIntent := 0, int64(0)
	for _, v := range variations {
		nv := Normalize(v.Text)
		if nv == "" {
			continue
		}
		if score := tokenSortScore(normalized, nv); score > best {
			best, bestIntent = score, v.IntentID
		}
	}

	if best < m.threshold || bestIntent == 0 {
		return Match{Score: best}, nil
	}
	in, err = m.store.Intent(ctx, bestIntent)
	if err != nil {
		return Match{}, err
	}
	return Match{Intent: in, Score: best}, nil
}

// tokenSortScore is fuzzywuzzy's token sort ratio with full processing: ASCII
// only, punctuation stripped, lower-cased, tokens sorted.
func tokenSortScore(a, b string) int {
	return fuzzy.TokenSortRatio(a, b, true, true)
}
