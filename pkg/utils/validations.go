package utils

import (
	"fmt"
	"math"
)

const (
	RatingMin = 1.0
	RatingMax = 5.0
)

func ValidateListingType(listingType string) error {
	switch listingType {
	case "supply", "demand":
		return nil
	default:
		return fmt.Errorf("invalid listing type: %s", listingType)
	}
}

func ValidateMatchAction(action string) error {
	switch action {
	case "saved", "dismissed":
		return nil
	default:
		return fmt.Errorf("invalid match action: %s", action)
	}
}

// RoundRating validates a rating against [1,5] and rounds it to the
// nearest 0.5 star.
func RoundRating(rating float64) (float64, error) {
	if rating < RatingMin || rating > RatingMax {
		return 0, fmt.Errorf("rating must be between %v and %v", RatingMin, RatingMax)
	}
	return math.Round(rating*2) / 2, nil
}
