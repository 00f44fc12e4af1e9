package diffrec

import (
	"encoding/json"
)

// MarshalRun serialises a Run to JSON.
func MarshalRun(r *Run) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRun deserialises a Run from JSON.
func UnmarshalRun(data []byte) (*Run, error) {
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarshalResults serialises endpoint results to JSON.
func MarshalResults(results []EndpointResult) ([]byte, error) {
	return json.Marshal(results)
}

// UnmarshalResults deserialises endpoint results from JSON.
func UnmarshalResults(data []byte) ([]EndpointResult, error) {
	var out []EndpointResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
