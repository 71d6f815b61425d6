package domain

import "time"

// EntityCategory is the branch key produced by the first upstream call.
type EntityCategory string

const (
	CategoryLegalEntity          EntityCategory = "legal-entity"
	CategoryIndividualEntrep     EntityCategory = "individual-entrepreneur"
	CategoryAgriculture          EntityCategory = "agriculture"
	CategoryProfessionalServices EntityCategory = "professional-services"
	CategoryDeregistered         EntityCategory = "deregistered"
)

// Known reports whether the category is one of the closed set.
// An unknown category is a terminal failure upstream of any fetch.
func (c EntityCategory) Known() bool {
	switch c {
	case CategoryLegalEntity, CategoryIndividualEntrep, CategoryAgriculture,
		CategoryProfessionalServices, CategoryDeregistered:
		return true
	}
	return false
}

// Classification is the result of the stat-office search by tax id.
// Produced exactly once per request; drives all routing.
type Classification struct {
	RegistryID RegistryID
	TaxID      TaxID
	LegalName  string
	Category   EntityCategory
	EndDate    *time.Time
}
