package payment

const (
	ServicePrivateCompany = "private_company"
	ServicePublicCompany  = "public_company"
	ServiceOther          = "other"

	customServiceLabel = "Custom Service"
)

type Service struct {
	Value       string  `json:"value"`
	Label       string  `json:"label"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

var services = []Service{
	{
		Value:       ServicePrivateCompany,
		Label:       "Private Company (Pty Ltd)",
		Price:       650,
		Description: "Complete registration package for private companies",
	},
	{
		Value:       ServicePublicCompany,
		Label:       "Public Company",
		Price:       850,
		Description: "Complete registration package for public companies",
	},
}

func Services() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}

func LookupService(value string) (Service, bool) {
	for _, s := range services {
		if s.Value == value {
			return s, true
		}
	}
	return Service{}, false
}
