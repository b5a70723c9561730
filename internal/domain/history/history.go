// Пакет history — слияние полисов и страховых случаев ТС в единую хронологию.
package history

import (
	"slices"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// Merge строит хронологию ТС: сначала все полисы, затем все случаи,
// после чего записи стабильно сортируются по StartDate.
// При равных датах сохраняется исходный порядок (полисы раньше случаев,
// внутри группы — порядок входных срезов).
func Merge(policies []model.Policy, claims []model.Claim) []model.HistoryEntry {
	entries := make([]model.HistoryEntry, 0, len(policies)+len(claims))

	for _, p := range policies {
		end := p.EndDate
		entries = append(entries, model.HistoryEntry{
			Kind:        model.HistoryKindPolicy,
			StartDate:   p.StartDate,
			EndDate:     &end,
			Description: p.Provider,
		})
	}

	for _, c := range claims {
		description := c.Description
		amount := c.Amount
		entries = append(entries, model.HistoryEntry{
			Kind:        model.HistoryKindClaim,
			StartDate:   c.ClaimDate,
			Description: &description,
			Amount:      &amount,
		})
	}

	slices.SortStableFunc(entries, func(a, b model.HistoryEntry) int {
		return a.StartDate.Compare(b.StartDate)
	})

	return entries
}
