package service

import "errors"

// ErrScoringUnavailable signals that the scoring path failed; the search
// fails closed rather than returning unscored results.
var ErrScoringUnavailable = errors.New("scoring dependency unavailable")
