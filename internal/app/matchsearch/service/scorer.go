package service

import (
	"context"

	"marketmatch/internal/matching"
)

// Scorer is the scoring dependency of a search. The default is the
// in-process matcher; deployments can swap in a remote scoring worker,
// whose failure makes the whole search fail closed.
type Scorer interface {
	Score(ctx context.Context, pair matching.Pair) (matching.Breakdown, bool, error)
}

type LocalScorer struct{}

func (LocalScorer) Score(_ context.Context, pair matching.Pair) (matching.Breakdown, bool, error) {
	b, within := matching.Score(pair)
	return b, within, nil
}
