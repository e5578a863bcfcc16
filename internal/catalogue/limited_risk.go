package catalogue

import "github.com/dshills/watchgraph/internal/schema"

func limitedRisk() *Catalogue {
	return &Catalogue{
		Risk: schema.RiskLimited,
		Requirements: []Requirement{
			{ID: "AIA-50-1", Article: "Art. 50(1)", Title: "Disclosure of AI Interaction",
				Description: "Inform natural persons that they are interacting with an AI system unless obvious from context."},
			{ID: "AIA-50-2", Article: "Art. 50(2)", Title: "Marking of Synthetic Content",
				Description: "Mark synthetic audio, image, video or text outputs in a machine-readable format."},
			{ID: "AIA-50-4", Article: "Art. 50(4)", Title: "Deep Fake Disclosure",
				Description: "Disclose that image, audio or video content constituting a deep fake has been artificially generated."},
			{ID: "AIA-04", Article: "Art. 4", Title: "AI Literacy",
				Description: "Ensure a sufficient level of AI literacy among staff dealing with the operation and use of AI systems."},
		},
	}
}
