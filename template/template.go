// Package template reads, extends and writes a compiled CloudFormation template.
// Everything in the template is kept as opaque data except the Resources section.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akhettar/apigw-swagger-api/model"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a template on disk.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatOf guesses the format from a file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return YAML
	default:
		return JSON
	}
}

// Template is a CloudFormation template. JSON templates are held as a generic document.
// YAML templates are held as a node tree so short-form intrinsics such as !Ref and !Sub
// are written back unchanged.
type Template struct {
	doc    map[string]interface{}
	node   *yaml.Node
	format Format
}

// Load reads the template at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return Parse(data, FormatOf(path))
}

// Parse decodes a template.
func Parse(data []byte, format Format) (*Template, error) {
	if format == YAML {
		return parseYAML(data)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s template: %w", format, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return &Template{doc: doc, format: JSON}, nil
}

func parseYAML(data []byte) (*Template, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decoding %s template: %w", YAML, err)
	}
	if node.Kind == 0 {
		node = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) != 1 || node.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("decoding %s template: top level is not a mapping", YAML)
	}
	return &Template{node: &node, format: YAML}, nil
}

// Resources returns the Resources section, creating it when missing. For YAML templates
// the returned map is a decoded copy; changes to it are not written back.
func (t *Template) Resources() map[string]interface{} {
	if t.format == YAML {
		var resources map[string]interface{}
		if err := t.resourcesNode().Decode(&resources); err != nil || resources == nil {
			resources = map[string]interface{}{}
		}
		model.Normalize(resources)
		return resources
	}
	resources, ok := t.doc["Resources"].(map[string]interface{})
	if !ok {
		resources = map[string]interface{}{}
		t.doc["Resources"] = resources
	}
	return resources
}

// Merge inserts generated resources. A resource already present is replaced only when it
// was generated for the same API; any other existing resource is left untouched and
// reported as a conflict.
func (t *Template) Merge(apiKey string, generated model.ResourceMap) []string {
	if t.format == YAML {
		return t.mergeYAML(apiKey, generated)
	}
	resources := t.Resources()
	var conflicts []string
	for _, name := range generated.Names() {
		if existing, ok := resources[name]; ok && !generatedBy(existing, apiKey) {
			logConflict(apiKey, name)
			conflicts = append(conflicts, name)
			continue
		}
		resources[name] = generated[name]
	}
	return conflicts
}

func (t *Template) mergeYAML(apiKey string, generated model.ResourceMap) []string {
	resources := t.resourcesNode()
	var conflicts []string
	for _, name := range generated.Names() {
		at := valueIndex(resources, name)
		if at >= 0 {
			var existing interface{}
			if err := resources.Content[at].Decode(&existing); err != nil || !generatedBy(model.Normalize(existing), apiKey) {
				logConflict(apiKey, name)
				conflicts = append(conflicts, name)
				continue
			}
		}

		var value yaml.Node
		if err := value.Encode(generated[name]); err != nil {
			log.WithFields(log.Fields{"api": apiKey, "resource": name, "error": err}).Error("Failed to encode resource")
			conflicts = append(conflicts, name)
			continue
		}
		if at >= 0 {
			resources.Content[at] = &value
		} else {
			resources.Content = append(resources.Content, scalar(name), &value)
		}
	}
	return conflicts
}

// resourcesNode returns the Resources mapping of a YAML template, creating it when missing.
func (t *Template) resourcesNode() *yaml.Node {
	root := t.node.Content[0]
	if at := valueIndex(root, "Resources"); at >= 0 {
		if root.Content[at].Kind == yaml.MappingNode {
			return root.Content[at]
		}
		root.Content[at] = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		return root.Content[at]
	}
	resources := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	root.Content = append(root.Content, scalar("Resources"), resources)
	return resources
}

// valueIndex returns the index of the value stored under key in a mapping node, or -1.
func valueIndex(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i + 1
		}
	}
	return -1
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func logConflict(apiKey, name string) {
	log.WithFields(log.Fields{"api": apiKey, "resource": name}).Warn("Resource already defined in template, not overwriting")
}

// Write encodes the template in its original format.
func (t *Template) Write(w io.Writer) error {
	if t.format == YAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t.node); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.doc)
}

// Save writes the template to path.
func (t *Template) Save(path string) error {
	var buf bytes.Buffer
	if err := t.Write(&buf); err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func generatedBy(resource interface{}, apiKey string) bool {
	switch r := resource.(type) {
	case model.Resource:
		return r.Metadata[model.GeneratedMarker] == apiKey
	case map[string]interface{}:
		metadata, _ := r["Metadata"].(map[string]interface{})
		return metadata[model.GeneratedMarker] == apiKey
	}
	return false
}
