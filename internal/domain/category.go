package domain

// Category is a label produced by enrichment. The completion service is asked
// to choose from Categories, but any returned label is stored as given.
type Category string

const (
	CategoryGovernmentPolicy    Category = "Government Policy & Regulatory Updates"
	CategoryFinancialIncentives Category = "Financial Incentives & Housing Programs"
	CategoryIndustryInnovations Category = "Industry Innovations & Construction Resources"
	CategoryCommunity           Category = "Community Initiatives & Local Developments"
	CategoryMarketTrends        Category = "Housing Market Trends & Demographic Insights"

	// CategoryUnknown is the explicit decline answer.
	CategoryUnknown Category = "I don't know"
)

// Categories is the closed list offered to the model.
var Categories = []Category{
	CategoryGovernmentPolicy,
	CategoryFinancialIncentives,
	CategoryIndustryInnovations,
	CategoryCommunity,
	CategoryMarketTrends,
}

// Known reports whether c is one of Categories. Advisory only.
func (c Category) Known() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
