package catalogue

import "github.com/dshills/watchgraph/internal/schema"

// Unacceptable-risk systems are prohibited; the only obligations are to
// establish the prohibition and decommission.
func unacceptableRisk() *Catalogue {
	return &Catalogue{
		Risk: schema.RiskUnacceptable,
		Requirements: []Requirement{
			{ID: "AIA-05", Article: "Art. 5", Title: "Prohibited Practice Review",
				Description: "Confirm whether the system falls under a prohibited AI practice and document the assessment."},
			{ID: "AIA-05-W", Article: "Art. 5", Title: "Withdrawal From Service",
				Description: "Withdraw a prohibited system from the market and from service, and record the withdrawal."},
		},
	}
}
