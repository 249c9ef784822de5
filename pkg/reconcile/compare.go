package reconcile

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/curator-ml/curator/pkg/provider"
	"github.com/curator-ml/curator/pkg/resource"
)

// jsonFields holds desired keys whose values are JSON documents compared
// structurally rather than byte for byte.
var jsonFields = map[string]bool{
	"schema": true,
}

// compareFields reports the desired keys whose remote values differ, after
// dropping workflow bookkeeping and the kind's excluded fields. A solution
// version ARN pointing at a different solution is unrecoverable and comes
// back as an error instead of a mismatch.
func compareFields(spec resource.Spec, desired, remote provider.Fields) ([]string, error) {
	var mismatches []string
	for key, want := range desired {
		if resource.IsWorkflowField(key) || spec.IsExcludedField(key) {
			continue
		}
		got, ok := remote[key]
		if !ok {
			mismatches = append(mismatches, key)
			continue
		}

		if key == "solutionVersionArn" && spec.Kind != resource.KindSolutionVersion {
			wantARN, _ := want.(string)
			gotARN, _ := got.(string)
			if resource.SolutionOf(wantARN) != resource.SolutionOf(gotARN) {
				return nil, fmt.Errorf("solution version %q belongs to a different solution than %q", gotARN, wantARN)
			}
			continue
		}

		if equalField(spec, key, want, got) {
			continue
		}
		mismatches = append(mismatches, key)
	}
	return mismatches, nil
}

func equalField(spec resource.Spec, key string, want, got any) bool {
	if spec.IsCaseInsensitiveField(key) {
		ws, wok := want.(string)
		gs, gok := got.(string)
		if wok && gok {
			return strings.EqualFold(ws, gs)
		}
	}
	if jsonFields[key] {
		if eq, ok := equalJSON(want, got); ok {
			return eq
		}
	}
	return reflect.DeepEqual(normalize(want), normalize(got))
}

// equalJSON compares two values as parsed JSON documents, unwrapping string
// encoded documents first.
func equalJSON(want, got any) (equal, ok bool) {
	w, werr := parseDocument(want)
	g, gerr := parseDocument(got)
	if werr != nil || gerr != nil {
		return false, false
	}
	return reflect.DeepEqual(w, g), true
}

func parseDocument(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return normalize(v), nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize round-trips a value through JSON so numeric and map types from
// different decoders compare equal.
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
