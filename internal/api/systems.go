package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dshills/watchgraph/internal/schema"
	"github.com/dshills/watchgraph/internal/schema/validate"
)

// ListSystems returns every registered system.
func (c *Client) ListSystems(ctx context.Context) ([]schema.System, error) {
	raw, err := c.getRaw(ctx, "/api/systems")
	if err != nil {
		return nil, err
	}
	systems, err := validate.ParseSystems(raw)
	if err != nil {
		return nil, fmt.Errorf("systems response: %w", err)
	}
	return systems, nil
}

// GetSystem returns one system by id.
func (c *Client) GetSystem(ctx context.Context, id string) (schema.System, error) {
	var s schema.System
	if err := c.doJSON(ctx, http.MethodGet, "/api/systems/"+escape(id), nil, &s); err != nil {
		return schema.System{}, err
	}
	if s.ID == "" {
		return schema.System{}, fmt.Errorf("system response: id is missing")
	}
	if err := validate.System(s); err != nil {
		return schema.System{}, fmt.Errorf("system response: %w", err)
	}
	return s, nil
}

// CreateSystem registers a system. The payload is validated before sending;
// the returned system carries the server-assigned id.
func (c *Client) CreateSystem(ctx context.Context, s schema.System) (schema.System, error) {
	if err := validate.System(s); err != nil {
		return schema.System{}, err
	}
	var created schema.System
	if err := c.doJSON(ctx, http.MethodPost, "/api/systems", s, &created); err != nil {
		return schema.System{}, err
	}
	if created.ID == "" {
		return schema.System{}, fmt.Errorf("create response: id is missing")
	}
	return created, nil
}

// ListRequirements returns the mappings of one system. Statuses are not
// checked here; callers route them through the compliance package.
func (c *Client) ListRequirements(ctx context.Context, systemID string) ([]schema.Mapping, error) {
	raw, err := c.getRaw(ctx, "/api/systems/"+escape(systemID)+"/requirements")
	if err != nil {
		return nil, err
	}
	ms, err := validate.ParseMappings(raw)
	if err != nil {
		return nil, fmt.Errorf("requirements response: %w", err)
	}
	return ms, nil
}

// GetCompliance returns the server-computed snapshot for one system.
func (c *Client) GetCompliance(ctx context.Context, systemID string) (schema.Snapshot, error) {
	var snap schema.Snapshot
	err := c.doJSON(ctx, http.MethodGet, "/api/systems/"+escape(systemID)+"/compliance", nil, &snap)
	return snap, err
}

type batchRequest struct {
	SystemIDs []string `json:"system_ids"`
}

type batchResponse struct {
	Results map[string]schema.Snapshot `json:"results"`
}

// BatchCompliance returns snapshots for several systems in one round trip.
// Unknown ids are absent from the result.
func (c *Client) BatchCompliance(ctx context.Context, systemIDs []string) (map[string]schema.Snapshot, error) {
	var out batchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/compliance/batch", batchRequest{SystemIDs: systemIDs}, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = map[string]schema.Snapshot{}
	}
	return out.Results, nil
}

// UpdateRequirement changes a mapping's status and, when u.Notes is non-nil,
// its notes. Returns the updated mapping.
func (c *Client) UpdateRequirement(ctx context.Context, mappingID string, u schema.StatusUpdate) (schema.Mapping, error) {
	if err := validate.StatusUpdate(u); err != nil {
		return schema.Mapping{}, err
	}
	var m schema.Mapping
	if err := c.doJSON(ctx, http.MethodPatch, "/api/requirements/"+escape(mappingID), u, &m); err != nil {
		return schema.Mapping{}, err
	}
	return m, nil
}

// GetMapping fetches a single mapping.
func (c *Client) GetMapping(ctx context.Context, mappingID string) (schema.Mapping, error) {
	var m schema.Mapping
	err := c.doJSON(ctx, http.MethodGet, "/api/requirements/"+escape(mappingID), nil, &m)
	return m, err
}

// DashboardStats returns the server-side portfolio summary.
func (c *Client) DashboardStats(ctx context.Context) (schema.DashboardStats, error) {
	var st schema.DashboardStats
	err := c.doJSON(ctx, http.MethodGet, "/api/dashboard/stats", nil, &st)
	return st, err
}
