package catalogue

import "github.com/dshills/watchgraph/internal/schema"

func highRisk() *Catalogue {
	return &Catalogue{
		Risk: schema.RiskHigh,
		Requirements: []Requirement{
			{ID: "AIA-09", Article: "Art. 9", Title: "Risk Management System",
				Description: "Establish, implement, document and maintain a risk management system across the entire lifecycle."},
			{ID: "AIA-10", Article: "Art. 10", Title: "Data Governance",
				Description: "Training, validation and testing data sets meet quality criteria and are subject to data governance practices."},
			{ID: "AIA-11", Article: "Art. 11", Title: "Technical Documentation",
				Description: "Draw up technical documentation before the system is placed on the market and keep it up to date."},
			{ID: "AIA-12", Article: "Art. 12", Title: "Record-Keeping",
				Description: "Enable automatic recording of events (logs) over the lifetime of the system."},
			{ID: "AIA-13", Article: "Art. 13", Title: "Transparency to Deployers",
				Description: "Provide instructions for use that let deployers interpret the output and use it appropriately."},
			{ID: "AIA-14", Article: "Art. 14", Title: "Human Oversight",
				Description: "Design the system so it can be effectively overseen by natural persons while in use."},
			{ID: "AIA-15", Article: "Art. 15", Title: "Accuracy, Robustness and Cybersecurity",
				Description: "Achieve an appropriate level of accuracy, robustness and cybersecurity throughout the lifecycle."},
			{ID: "AIA-17", Article: "Art. 17", Title: "Quality Management System",
				Description: "Put a documented quality management system in place covering compliance strategy, design and testing."},
			{ID: "AIA-27", Article: "Art. 27", Title: "Fundamental Rights Impact Assessment",
				Description: "Assess the impact on fundamental rights before deploying the system."},
			{ID: "AIA-43", Article: "Art. 43", Title: "Conformity Assessment",
				Description: "Complete the applicable conformity assessment procedure before placing on the market."},
			{ID: "AIA-49", Article: "Art. 49", Title: "EU Database Registration",
				Description: "Register the system in the EU database before placing it on the market or putting it into service."},
			{ID: "AIA-72", Article: "Art. 72", Title: "Post-Market Monitoring",
				Description: "Establish a post-market monitoring system proportionate to the nature of the AI technology and risks."},
			{ID: "AIA-73", Article: "Art. 73", Title: "Serious Incident Reporting",
				Description: "Report serious incidents to the market surveillance authorities within the prescribed deadlines."},
		},
	}
}
