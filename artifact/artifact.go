// Package artifact models the metadata descriptors exchanged with the
// orchestrator: directory-backed artifacts (statistics bundles, schemas,
// validation outputs) and the execution result returned by a validation
// run. Artifacts are owned by the orchestrator's metadata store; this
// package only reads and annotates them.
package artifact

import (
	"encoding/json"
	"sort"

	"github.com/teranos/validus/errors"
)

// Artifact describes one directory-backed artifact.
type Artifact struct {
	// URI is the artifact's root directory on local or mounted storage.
	URI string `json:"uri"`

	// SplitNames holds the JSON-encoded list of split names for
	// split-partitioned artifacts (statistics, anomalies). Empty for
	// unpartitioned artifacts such as schemas.
	SplitNames string `json:"split_names,omitempty"`

	// Span is the dataset generation marker, copied from producer to
	// consumer verbatim.
	Span int64 `json:"span,omitempty"`

	// Properties carries structured custom properties keyed by name.
	// Values must be JSON-serializable.
	Properties map[string]interface{} `json:"custom_properties,omitempty"`
}

// SetProperty sets a structured custom property on the artifact.
func (a *Artifact) SetProperty(key string, value interface{}) {
	if a.Properties == nil {
		a.Properties = make(map[string]interface{})
	}
	a.Properties[key] = value
}

// Property returns a custom property and whether it was present.
func (a *Artifact) Property(key string) (interface{}, bool) {
	v, ok := a.Properties[key]
	return v, ok
}

// EncodeSplitNames encodes a split-name list into the canonical
// JSON-array form used on artifact descriptors. The encoding preserves
// order and is byte-stable for a given list.
func EncodeSplitNames(splits []string) (string, error) {
	raw, err := json.Marshal(splits)
	if err != nil {
		return "", errors.IOf(err, "encoding split names %v", splits)
	}
	return string(raw), nil
}

// DecodeSplitNames decodes the JSON-array split-name encoding from an
// artifact descriptor. An empty encoding decodes to an empty list.
func DecodeSplitNames(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var splits []string
	if err := json.Unmarshal([]byte(encoded), &splits); err != nil {
		return nil, errors.IOf(err, "decoding split names %q", encoded)
	}
	return splits, nil
}

// ExecutionResult is the descriptor returned to the orchestrator when a
// run completes: the output artifacts plus execution-level properties
// (the side-channel used for packed alert lists).
type ExecutionResult struct {
	// OutputArtifacts maps output keys to produced artifacts.
	OutputArtifacts map[string][]*Artifact `json:"output_artifacts"`

	// ExecutionProperties is the execution-result side-channel. A key is
	// present only when its value carries information; absence and
	// emptiness are distinct signals.
	ExecutionProperties map[string]interface{} `json:"execution_properties,omitempty"`
}

// NewExecutionResult returns an empty execution result.
func NewExecutionResult() *ExecutionResult {
	return &ExecutionResult{
		OutputArtifacts: make(map[string][]*Artifact),
	}
}

// AddOutput appends an artifact under an output key.
func (r *ExecutionResult) AddOutput(key string, a *Artifact) {
	r.OutputArtifacts[key] = append(r.OutputArtifacts[key], a)
}

// SetExecutionProperty attaches a value to the execution side-channel.
func (r *ExecutionResult) SetExecutionProperty(key string, value interface{}) {
	if r.ExecutionProperties == nil {
		r.ExecutionProperties = make(map[string]interface{})
	}
	r.ExecutionProperties[key] = value
}

// ExecutionProperty returns a side-channel value and whether it was set.
func (r *ExecutionResult) ExecutionProperty(key string) (interface{}, bool) {
	v, ok := r.ExecutionProperties[key]
	return v, ok
}

// OutputKeys returns the sorted output keys, for deterministic iteration.
func (r *ExecutionResult) OutputKeys() []string {
	keys := make([]string, 0, len(r.OutputArtifacts))
	for k := range r.OutputArtifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
