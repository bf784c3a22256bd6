package matcher

import (
	"math"
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/narwhalmedia/catalog/internal/library/metadata"
	"github.com/narwhalmedia/catalog/internal/library/parser"
	"github.com/narwhalmedia/catalog/pkg/config"
)

// scoreEpsilon absorbs float rounding in margin comparisons.
const scoreEpsilon = 1e-9

func similarity(a, b string, algo edlib.Algorithm) float64 {
	sim, err := edlib.StringsSimilarity(a, b, algo)
	if err != nil {
		return 0
	}
	return float64(sim)
}

// titleSimilarity compares two normalized titles. Word overlap handles
// reordered titles; the edit distance pair handles typos and keeps sequels
// ("the matrix reloaded") well below the original.
func titleSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	jaccard := similarity(a, b, edlib.Jaccard)
	edit := (similarity(a, b, edlib.Levenshtein) + similarity(a, b, edlib.JaroWinkler)) / 2
	return math.Max(jaccard, edit)
}

// yearAdjustment rewards an exact year and penalizes each year of drift.
// A missing year on either side is neutral.
func yearAdjustment(cfg config.MatcherSettings, hintYear *int, candidateYear int) float64 {
	if hintYear == nil || candidateYear == 0 {
		return 0
	}
	delta := *hintYear - candidateYear
	if delta < 0 {
		delta = -delta
	}
	if delta == 0 {
		return cfg.YearExactBonus
	}
	return -float64(delta) * cfg.YearPenaltyPerYear
}

func score(cfg config.MatcherSettings, hint *parser.Hint, c metadata.Candidate) float64 {
	title := parser.Normalize(hint.Title)
	sim := titleSimilarity(title, parser.Normalize(c.Title))
	if c.OriginalTitle != "" {
		sim = math.Max(sim, titleSimilarity(title, parser.Normalize(c.OriginalTitle)))
	}

	s := cfg.TitleWeight*sim + yearAdjustment(cfg, hint.Year, c.Year)
	return math.Max(0, math.Min(1, s))
}

// rank scores every candidate and sorts them best first. Equal scores are
// ordered by ExternalID so the result never depends on provider order.
func rank(cfg config.MatcherSettings, hint *parser.Hint, candidates []metadata.Candidate) []Scored {
	scored := make([]Scored, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.ExternalID] {
			continue
		}
		seen[c.ExternalID] = true
		scored = append(scored, Scored{Candidate: c, Score: score(cfg, hint, c)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Candidate.ExternalID < scored[j].Candidate.ExternalID
	})
	return scored
}
