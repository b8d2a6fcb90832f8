// Package types holds the records shared between the audience resolver, the
// document store backends and the RPC surface.
package types

import (
	"encoding/json"
	"fmt"
)

// Intention selects which backing collection a set filter is evaluated
// against.
type Intention string

const (
	IntentionTarget Intention = "target"
	IntentionClient Intention = "client"
)

// Relation is the comparison a set filter applies to a tag value.
type Relation string

const (
	RelationEqual       Relation = "="
	RelationLessThan    Relation = "<"
	RelationGreaterThan Relation = ">"
	RelationRange       Relation = "()"
)

// IndexKind says how a tag's values are indexed.
type IndexKind string

const (
	IndexKindBin IndexKind = "bin"
	IndexKindInt IndexKind = "int"
)

// SetFilter describes one named set of a residency definition: a tag name,
// a relation over its value(s) and the collection the filter runs against.
type SetFilter struct {
	Key       string    `json:"key"`
	Relation  Relation  `json:"relation"`
	Values    []string  `json:"value"`
	Intention Intention `json:"intention"`
}

// UnmarshalJSON accepts the wire form where "value" is either a single
// string or a two-element [start, end] pair for the "()" relation.
func (f *SetFilter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key       string          `json:"key"`
		Relation  Relation        `json:"relation"`
		Value     json.RawMessage `json:"value"`
		Intention Intention       `json:"intention"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Key = raw.Key
	f.Relation = raw.Relation
	f.Intention = raw.Intention
	f.Values = nil

	if len(raw.Value) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.Value, &single); err == nil {
		f.Values = []string{single}
		return nil
	}

	var pair []string
	if err := json.Unmarshal(raw.Value, &pair); err != nil {
		return fmt.Errorf("set filter value must be a string or a [start, end] pair: %w", err)
	}
	f.Values = pair

	return nil
}

// MarshalJSON writes the single-string form whenever the filter holds one
// value, matching what callers originally posted.
func (f SetFilter) MarshalJSON() ([]byte, error) {
	raw := struct {
		Key       string    `json:"key"`
		Relation  Relation  `json:"relation"`
		Value     any       `json:"value"`
		Intention Intention `json:"intention"`
	}{
		Key:       f.Key,
		Relation:  f.Relation,
		Intention: f.Intention,
	}
	switch len(f.Values) {
	case 0:
		raw.Value = nil
	case 1:
		raw.Value = f.Values[0]
	default:
		raw.Value = f.Values
	}
	return json.Marshal(raw)
}

// Validate checks the filter's own shape; relation semantics against tag
// metadata are checked later, during resolution.
func (f *SetFilter) Validate() error {
	if f.Key == "" {
		return fmt.Errorf("set filter is missing a tag key")
	}
	switch f.Intention {
	case IntentionTarget, IntentionClient:
	default:
		return fmt.Errorf("unknown intention: %q", f.Intention)
	}
	switch f.Relation {
	case RelationEqual, RelationLessThan, RelationGreaterThan:
		if len(f.Values) != 1 {
			return fmt.Errorf("relation %q takes exactly one value", f.Relation)
		}
	case RelationRange:
		if len(f.Values) != 2 {
			return fmt.Errorf("relation %q takes a [start, end] pair", f.Relation)
		}
	default:
		return fmt.Errorf("unknown relation: %q", f.Relation)
	}
	return nil
}

// Residency is one audience definition: named set filters combined by a
// set-algebra expression over the set names.
type Residency struct {
	Sets       map[string]SetFilter `json:"sets"`
	Expression string               `json:"expression"`
}

// Target is an abstract recipient that may own multiple client devices.
type Target struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	ClientIDs []string `json:"clients"`
}

// Client is one registered device/application pairing belonging to a target.
type Client struct {
	ID         string `json:"id"`
	TargetID   string `json:"target_id"`
	DeviceType string `json:"device_type"`
	Token      string `json:"token"`
}

// TagMetadata tracks, per tag, the index kind and the running min/max of the
// values ever indexed under it. Open-ended relations derive their scan bound
// from these. Deletions may leave the bounds wider than the live values; a
// wider scan returns the same matches.
type TagMetadata struct {
	Key       string    `json:"key"`
	Intention Intention `json:"intention"`
	Kind      IndexKind `json:"kind"`
	Min       string    `json:"min"`
	Max       string    `json:"max"`
}
