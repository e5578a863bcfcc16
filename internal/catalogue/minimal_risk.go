package catalogue

import "github.com/dshills/watchgraph/internal/schema"

func minimalRisk() *Catalogue {
	return &Catalogue{
		Risk: schema.RiskMinimal,
		Requirements: []Requirement{
			{ID: "AIA-04", Article: "Art. 4", Title: "AI Literacy",
				Description: "Ensure a sufficient level of AI literacy among staff dealing with the operation and use of AI systems."},
			{ID: "AIA-95", Article: "Art. 95", Title: "Voluntary Codes of Conduct",
				Description: "Consider voluntary application of high-risk requirements through codes of conduct."},
		},
	}
}
