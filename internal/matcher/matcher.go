// Package matcher scores target-catalog search candidates against source
// tracks. Scoring is pure: no I/O, no state.
package matcher

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/resync/internal/services"
)

// Threshold is the acceptance boundary for a weighted score. Acceptance is
// strict: a score equal to the threshold is rejected.
const Threshold = 0.3

const (
	titleWeight  = 0.7
	artistWeight = 0.3
)

// Similarity returns the normalized edit-distance similarity of two strings,
// case-insensitive:
//
//	sim(a, b) = (max(|a|,|b|) - levenshtein(a, b)) / max(|a|,|b|)
//
// Two empty strings are identical (similarity 1).
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}

	distance := levenshtein.ComputeDistance(a, b)
	return float64(longest-distance) / float64(longest)
}

// Query builds the target-catalog search query for a source track.
func Query(track services.SourceTrack) string {
	return fmt.Sprintf("%s - %s", track.Artist, track.Title)
}

// Score computes the weighted match score of a candidate for a source track:
// title similarity against "artist - title" carries 70%, channel similarity
// against the artist name 30%.
func Score(candidate services.Candidate, track services.SourceTrack) float64 {
	titleSim := Similarity(candidate.Title, Query(track))
	artistSim := Similarity(candidate.ChannelTitle, track.Artist)
	return titleSim*titleWeight + artistSim*artistWeight
}

// Best returns the highest-scoring candidate and its score. The second
// return is false when candidates is empty.
func Best(candidates []services.Candidate, track services.SourceTrack) (services.Candidate, float64, bool) {
	var best services.Candidate
	bestScore := 0.0
	found := false

	for _, candidate := range candidates {
		if candidate.VideoID == "" {
			continue
		}
		if score := Score(candidate, track); !found || score > bestScore {
			best = candidate
			bestScore = score
			found = true
		}
	}

	return best, bestScore, found
}

// Acceptable reports whether a score clears the acceptance threshold.
func Acceptable(score float64) bool {
	return score > Threshold
}
