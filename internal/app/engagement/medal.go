package engagement

import "github.com/kudimu-insights/kudimu/internal/domain"

// EvaluateMedals returns the medals whose criterion holds for stats, in
// catalog order. It is a pure function of its input.
func EvaluateMedals(stats domain.MedalStats) []domain.Medal {
	var unlocked []domain.Medal
	for _, m := range domain.Medals() {
		if m.Criterion != nil && m.Criterion(stats) {
			unlocked = append(unlocked, m)
		}
	}
	return unlocked
}

// MedalStatus pairs a catalog medal with whether the user holds it.
type MedalStatus struct {
	domain.Medal
	Unlocked bool `json:"unlocked"`
}

// MedalCatalog returns every medal with its unlocked flag for stats.
func MedalCatalog(stats domain.MedalStats) []MedalStatus {
	all := domain.Medals()
	out := make([]MedalStatus, len(all))
	for i, m := range all {
		out[i] = MedalStatus{Medal: m, Unlocked: m.Criterion != nil && m.Criterion(stats)}
	}
	return out
}
