package render

import (
	"encoding/json"

	"github.com/dshills/watchgraph/internal/schema"
)

type jsonRenderer struct{}

func (r *jsonRenderer) Dashboard(report *schema.DashboardReport) ([]byte, error) {
	return marshal(report)
}

func (r *jsonRenderer) System(report *schema.SystemReport) ([]byte, error) {
	return marshal(report)
}

func marshal(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
