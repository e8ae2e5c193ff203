package domain

// Service is one selectable service within a category.
type Service struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Category groups services offered by the portal.
type Category struct {
	Value    string    `json:"value" yaml:"value"`
	Label    string    `json:"label" yaml:"label"`
	Services []Service `json:"services" yaml:"services"`
}

// Catalog is the ordered set of categories accepted at intake.
type Catalog []Category

// Find returns the category with the given value.
func (c Catalog) Find(value string) (Category, bool) {
	for _, cat := range c {
		if cat.Value == value {
			return cat, true
		}
	}
	return Category{}, false
}

// HasService reports whether the category offers the service.
func (c Category) HasService(value string) bool {
	for _, s := range c.Services {
		if s.Value == value {
			return true
		}
	}
	return false
}

// DefaultCatalog returns the categories offered by the regional government.
func DefaultCatalog() Catalog {
	return Catalog{
		{Value: "identity", Label: "Identity Documents", Services: []Service{
			{"birth-certificate", "Birth Certificate"},
			{"national-id", "National ID"},
			{"passport-application", "Passport Application"},
			{"certificate-replacement", "Certificate Replacement"},
		}},
		{Value: "business", Label: "Business Services", Services: []Service{
			{"business-registration", "Business Registration"},
			{"license-application", "License Application"},
			{"tax-certificate", "Tax Certificate"},
			{"trade-permit", "Trade Permit"},
		}},
		{Value: "land", Label: "Land & Property", Services: []Service{
			{"land-title", "Land Title"},
			{"property-registration", "Property Registration"},
			{"ownership-transfer", "Ownership Transfer"},
			{"survey-request", "Survey Request"},
		}},
		{Value: "general", Label: "General Services", Services: []Service{
			{"information-request", "Information Request"},
			{"complaint-filing", "Complaint Filing"},
			{"service-feedback", "Service Feedback"},
			{"public-records", "Public Records"},
		}},
		{Value: "health", Label: "Health Services", Services: []Service{
			{"health-certificate", "Health Certificate"},
			{"medical-records", "Medical Records"},
			{"vaccination-certificate", "Vaccination Certificate"},
			{"health-facility-registration", "Health Facility Registration"},
		}},
		{Value: "education", Label: "Education Services", Services: []Service{
			{"school-certificate", "School Certificate"},
			{"transcript-request", "Transcript Request"},
			{"school-registration", "School Registration"},
			{"scholarship-application", "Scholarship Application"},
		}},
	}
}
