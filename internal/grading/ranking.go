package grading

import (
	"sort"

	"github.com/noah-isme/sma-report-engine/internal/models"
)

// Rank orders report cards of one cohort by overall average, then GPA, and
// assigns competition ranks (1, 2, 2, 4). Cards with an equal average and an
// equal GPA share a rank. The input slice is left untouched.
func Rank(cards []models.ReportCard) []models.RankedReportCard {
	ranked := make([]models.RankedReportCard, len(cards))
	for i, card := range cards {
		ranked[i] = models.RankedReportCard{ReportCard: card}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].ReportCard, ranked[j].ReportCard
		if a.OverallAverage != b.OverallAverage {
			return a.OverallAverage > b.OverallAverage
		}
		if c := compareGPA(a.GPA, b.GPA); c != 0 {
			return c > 0
		}
		return a.Student.ID < b.Student.ID
	})
	for i := range ranked {
		if i > 0 && tied(ranked[i-1].ReportCard, ranked[i].ReportCard) {
			ranked[i].Rank = ranked[i-1].Rank
			continue
		}
		ranked[i].Rank = i + 1
	}
	return ranked
}

func tied(a, b models.ReportCard) bool {
	return a.OverallAverage == b.OverallAverage && compareGPA(a.GPA, b.GPA) == 0
}

// compareGPA orders present GPAs before missing ones.
func compareGPA(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a > *b:
		return 1
	case *a < *b:
		return -1
	default:
		return 0
	}
}
