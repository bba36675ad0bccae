package model

import (
	"fmt"
	"strings"
)

// Role name seed compositions.
const (
	SeedStack = "stack"
	SeedStage = "stage"
)

// APIDefinition is one entry of the apis block. Body is the OpenAPI document and is
// annotated in place by the synthesizer. Keys the synthesizer does not consume are kept
// in Properties and passed through to the RestApi resource.
type APIDefinition struct {
	Name       string                 `yaml:"Name"`
	Body       map[string]interface{} `yaml:"Body"`
	BodyFile   string                 `yaml:"BodyFile"`
	Stage      string                 `yaml:"Stage" validate:"omitempty,excludes=/"`
	Lambda     string                 `yaml:"Lambda" validate:"omitempty,alphanum"`
	RestAPIID  string                 `yaml:"RestApiId"`
	Properties map[string]interface{} `yaml:",inline"`
}

// StageOr returns the definition's stage, or fallback when none is set.
func (a *APIDefinition) StageOr(fallback string) string {
	if a.Stage != "" {
		return a.Stage
	}
	return fallback
}

// Paths returns the document's paths object, or nil when absent or malformed.
func (a *APIDefinition) Paths() map[string]interface{} {
	if a.Body == nil {
		return nil
	}
	paths, _ := a.Body["paths"].(map[string]interface{})
	return paths
}

// SetVersion stamps info.version on the document.
func (a *APIDefinition) SetVersion(version string) {
	if a.Body == nil {
		a.Body = map[string]interface{}{}
	}
	info, ok := a.Body["info"].(map[string]interface{})
	if !ok {
		info = map[string]interface{}{}
		a.Body["info"] = info
	}
	info["version"] = version
}

// StackContext carries the caller-wide values the synthesizer needs.
type StackContext struct {
	Stage        string
	ServiceName  string
	StackName    string
	RoleNameSeed string
}

// NameSeed is the unclipped seed used for the role and policy names of an API.
func (c StackContext) NameSeed(apiKey string) string {
	prefix := c.StackName
	if c.RoleNameSeed == SeedStage || prefix == "" {
		prefix = c.Stage
	}
	return strings.Join([]string{prefix, c.ServiceName, apiKey}, "-")
}

// Normalize converts the map[interface{}]interface{} values some YAML documents decode to
// into map[string]interface{} so the document can be encoded as JSON.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case map[string]interface{}:
		for k, val := range t {
			t[k] = Normalize(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = Normalize(val)
		}
		return t
	default:
		return v
	}
}
