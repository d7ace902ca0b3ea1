package lead

import "strings"

// Reference-data names the scoring rules depend on. They must match the
// seeded rows.
const (
	PackConformite = "conformité"
	PackConfiance  = "confiance"
	PackCroissance = "croissance"

	UrgencyImmediate = "immédiat"
	UrgencyThisMonth = "ce mois"
	DefaultUrgency   = "moyen terme"

	InitialStatus = "nouveau"
)

var executiveKeywords = []string{"manager", "director", "cto", "ceo"}

func isExecutiveTitle(title string) bool {
	t := strings.ToLower(title)
	for _, kw := range executiveKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func anyContains(values []string, sub string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), sub) {
			return true
		}
	}
	return false
}

// MaturityScore rates how sales-ready a submission is, from 0 to 5.
// One point each for a company above 100 people, more than 50 estimated
// users, more than two concerns, and an executive job title.
func MaturityScore(p Payload) int {
	score := 0
	if p.CompanySize > 100 {
		score++
	}
	if p.EstimatedUsers > 50 {
		score++
	}
	if len(p.Concerns) > 2 {
		score++
	}
	if isExecutiveTitle(p.JobTitle) {
		score++
	}
	if score > 5 {
		score = 5
	}
	return score
}

// RecommendPack picks a pack name from the stated concerns. "confiance"
// takes priority over "croissance"; anything else falls back to the
// "conformité" default.
func RecommendPack(concerns []string) string {
	switch {
	case anyContains(concerns, PackConfiance):
		return PackConfiance
	case anyContains(concerns, PackCroissance):
		return PackCroissance
	default:
		return PackConformite
	}
}

// PotentialScore rates deal value for a loaded lead, from 0 to 8. It is
// derived at read time and never stored.
func PotentialScore(l Lead) int {
	score := 0
	if l.Company.Size > 0 {
		switch {
		case l.Company.Size > 1000:
			score += 3
		case l.Company.Size > 250:
			score += 2
		default:
			score++
		}
	}
	if l.Urgency != nil {
		switch l.Urgency.Name {
		case UrgencyImmediate:
			score += 3
		case UrgencyThisMonth:
			score += 2
		}
	}
	if isExecutiveTitle(l.Contact.JobTitle) {
		score += 2
	}
	return score
}
