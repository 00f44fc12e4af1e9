package apidiff

import (
	"context"
	"fmt"

	"github.com/hazyhaar/migverify/idgen"
	"github.com/hazyhaar/migverify/kit"
)

// CompareRequest selects the two snapshots to compare, by ID or by the
// latest snapshot carrying a label.
type CompareRequest struct {
	BeforeID    string `json:"before_id,omitempty"`
	AfterID     string `json:"after_id,omitempty"`
	BeforeLabel string `json:"before_label,omitempty"`
	AfterLabel  string `json:"after_label,omitempty"`
}

// GetRunRequest names a stored run.
type GetRunRequest struct {
	ID string `json:"id"`
}

// ListRequest pages through stored runs or snapshots.
type ListRequest struct {
	Label string `json:"label,omitempty"` // snapshots only
	Limit int    `json:"limit,omitempty"`
}

// endpoints holds every operation exposed over HTTP and MCP, each written
// once against the Service.
type endpoints struct {
	compare       kit.Endpoint
	getRun        kit.Endpoint
	listRuns      kit.Endpoint
	listSnapshots kit.Endpoint
}

func (s *Service) endpoints() endpoints {
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Chain(
			kit.WithRequestIDs(idgen.Prefixed("req_", idgen.UUIDv7())),
			kit.Logging(s.logger, name),
		)(ep)
	}
	return endpoints{
		compare: wrap("compare", func(ctx context.Context, req any) (any, error) {
			r := req.(*CompareRequest)
			switch {
			case r.BeforeID != "" && r.AfterID != "":
				return s.CompareStored(ctx, r.BeforeID, r.AfterID)
			case r.BeforeLabel != "" && r.AfterLabel != "":
				return s.CompareLatest(ctx, r.BeforeLabel, r.AfterLabel)
			}
			return nil, fmt.Errorf("%w: give before_id and after_id, or before_label and after_label", ErrInvalidInput)
		}),
		getRun: wrap("get_run", func(ctx context.Context, req any) (any, error) {
			r := req.(*GetRunRequest)
			if r.ID == "" {
				return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
			}
			return s.GetRun(ctx, r.ID)
		}),
		listRuns: wrap("list_runs", func(ctx context.Context, req any) (any, error) {
			r := req.(*ListRequest)
			runs, err := s.ListRuns(ctx, r.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"runs": nonNil(runs)}, nil
		}),
		listSnapshots: wrap("list_snapshots", func(ctx context.Context, req any) (any, error) {
			r := req.(*ListRequest)
			snaps, err := s.ListSnapshots(ctx, r.Label, r.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"snapshots": nonNil(snaps)}, nil
		}),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
