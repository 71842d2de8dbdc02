package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/interlock/internal/ir"
)

// marshalFirings converts firings to canonical JSON TEXT for storage.
func marshalFirings(firings []ir.Firing) (string, error) {
	arr := make(ir.Array, len(firings))
	for i, f := range firings {
		arr[i] = ir.Object{
			"component": ir.String(string(f.Component)),
			"type":      ir.String(f.Type),
			"port":      ir.String(f.Port),
		}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal firings: %w", err)
	}
	return string(data), nil
}

// marshalPairings converts pairings to canonical JSON TEXT for storage.
func marshalPairings(pairings []ir.Pairing) (string, error) {
	ref := func(p ir.PortRef) ir.Object {
		return ir.Object{"component": ir.String(string(p.Component)), "port": ir.String(p.Port)}
	}
	arr := make(ir.Array, len(pairings))
	for i, p := range pairings {
		arr[i] = ir.Object{"consumer": ref(p.Consumer), "producer": ref(p.Producer)}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal pairings: %w", err)
	}
	return string(data), nil
}

// unmarshalFirings parses stored firings. Returns an empty slice, never nil.
func unmarshalFirings(data string) ([]ir.Firing, error) {
	out := []ir.Firing{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal firings: %w", err)
	}
	return out, nil
}

// unmarshalPairings parses stored pairings. Returns nil when there are none.
func unmarshalPairings(data string) ([]ir.Pairing, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []ir.Pairing
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal pairings: %w", err)
	}
	return out, nil
}
