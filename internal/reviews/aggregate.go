package reviews

import (
	"math"

	"bookhub/pkg/models"
)

// Aggregate returns the mean rating rounded to one decimal, 0 when there are
// no reviews. Always computed fresh from the full review set of a book.
func Aggregate(revs []models.Review) float64 {
	if len(revs) == 0 {
		return 0
	}
	sum := 0
	for _, r := range revs {
		sum += r.Rating
	}
	mean := float64(sum) / float64(len(revs))
	return math.Round(mean*10) / 10
}

// RatingCounts tallies reviews per star, with an entry for every star 1-5.
func RatingCounts(revs []models.Review) map[int]int {
	counts := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for _, r := range revs {
		if r.Rating >= 1 && r.Rating <= 5 {
			counts[r.Rating]++
		}
	}
	return counts
}
