// Package diagnosis defines the plant diagnosis record, the prompt that asks a
// vision model for it, and the normalizer that turns model output into a
// validated Record.
package diagnosis

// Status is the overall health assessment of a plant.
type Status string

const (
	StatusHealthy           Status = "healthy"
	StatusUnhealthy         Status = "unhealthy"
	StatusDiseased          Status = "diseased"
	StatusPestInfested      Status = "pest_infested"
	StatusNutrientDeficient Status = "nutrient_deficient"
	StatusStressed          Status = "stressed"
	StatusUnknown           Status = "unknown"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{
	StatusHealthy,
	StatusUnhealthy,
	StatusDiseased,
	StatusPestInfested,
	StatusNutrientDeficient,
	StatusStressed,
	StatusUnknown,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Record is the normalized plant-health assessment returned to callers.
type Record struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Confidence int    `json:"confidence"`
	Problem    string `json:"problem"`
	Cause      string `json:"cause"`
	Treatment  string `json:"treatment"`
	Prevention string `json:"prevention"`
}
