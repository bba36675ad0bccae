package swagger

import (
	"fmt"
	"strings"

	swg "github.com/go-openapi/spec"
	"github.com/go-openapi/swag"
	log "github.com/sirupsen/logrus"
)

// Path item keys holding a CORS configuration. Neither is valid OpenAPI, so both are
// removed from the path once processed.
var corsKeys = []string{"cors", "x-cors"}

// DefaultAllowedHeaders is advertised when no header is configured or declared on the path.
var DefaultAllowedHeaders = []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key", "X-Amz-Security-Token"}

const (
	allowOrigin  = "Access-Control-Allow-Origin"
	allowMethods = "Access-Control-Allow-Methods"
	allowHeaders = "Access-Control-Allow-Headers"
)

// CORS is the per-path CORS configuration. Empty fields fall back to the path's own
// methods and headers, and to any origin.
type CORS struct {
	Origin  string
	Methods []string
	Headers []string
}

// addCORS synthesizes a mock options operation for a path declaring a CORS block,
// unless the path already defines one.
func addCORS(key, path string, item map[string]interface{}, methods, headers []string) {
	cors, ok := takeCORS(item)
	if !ok {
		return
	}
	if _, exists := item["options"].(map[string]interface{}); exists {
		log.WithFields(log.Fields{"api": key, "path": path}).Debug("Path defines its own options method, CORS not synthesized")
		return
	}

	origin := cors.Origin
	if origin == "" {
		origin = "*"
	}
	allowed := cors.Methods
	if len(allowed) == 0 {
		for _, method := range methods {
			allowed = append(allowed, strings.ToUpper(method))
		}
	}
	allowedHeaders := cors.Headers
	if len(allowedHeaders) == 0 {
		allowedHeaders = headers
	}
	if len(allowedHeaders) == 0 {
		allowedHeaders = DefaultAllowedHeaders
	}

	log.WithFields(log.Fields{"api": key, "path": path}).Info("Adding CORS Support to endpoint")
	item["options"] = swag.ToDynamicJSON(optionsOperation(origin, strings.Join(allowed, ","), strings.Join(allowedHeaders, ",")))
}

// takeCORS removes the CORS keys from a path item and returns the configuration they hold.
// A false value, or no key at all, disables CORS.
func takeCORS(item map[string]interface{}) (CORS, bool) {
	var (
		cors    CORS
		enabled bool
	)
	for _, k := range corsKeys {
		raw, ok := item[k]
		if !ok {
			continue
		}
		delete(item, k)
		if enabled {
			continue
		}
		cors, enabled = parseCORS(raw)
	}
	return cors, enabled
}

func parseCORS(raw interface{}) (CORS, bool) {
	switch v := raw.(type) {
	case bool:
		return CORS{}, v
	case string:
		return CORS{Origin: v}, v != ""
	case map[string]interface{}:
		return CORS{
			Origin:  stringValue(v["origin"]),
			Methods: upper(stringList(v["methods"])),
			Headers: stringList(v["headers"]),
		}, true
	case nil:
		return CORS{}, true
	default:
		return CORS{}, false
	}
}

func optionsOperation(origin, methods, headers string) *swg.Operation {
	op := swg.NewOperation("")
	op.Summary = "CORS Support"
	op.Description = "Enable CORS Support by returning correct headers"
	op.Consumes = []string{"application/json"}
	op.Produces = []string{"application/json"}
	op.Responses = &swg.Responses{
		ResponsesProps: swg.ResponsesProps{
			StatusCodeResponses: map[int]swg.Response{
				200: {
					ResponseProps: swg.ResponseProps{
						Description: "Default response for CORS method",
						Headers: map[string]swg.Header{
							allowOrigin:  {SimpleSchema: swg.SimpleSchema{Type: "string"}},
							allowMethods: {SimpleSchema: swg.SimpleSchema{Type: "string"}},
							allowHeaders: {SimpleSchema: swg.SimpleSchema{Type: "string"}},
						},
					},
				},
			},
		},
	}

	op.AddExtension(IntegrationExtension, map[string]interface{}{
		"type":                "mock",
		"passthroughBehavior": "when_no_match",
		"requestTemplates":    map[string]string{"application/json": `{"statusCode": 200}`},
		"responses": map[string]interface{}{
			"default": map[string]interface{}{
				"statusCode": "200",
				"responseParameters": map[string]string{
					responseHeader(allowOrigin):  quote(origin),
					responseHeader(allowMethods): quote(methods),
					responseHeader(allowHeaders): quote(headers),
				},
			},
		},
	})
	return op
}

func responseHeader(name string) string {
	return "method.response.header." + name
}

func quote(s string) string {
	return fmt.Sprintf("'%s'", s)
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// stringList accepts either a list or a comma separated string.
func stringList(v interface{}) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, s := range t {
			if str, ok := s.(string); ok && str != "" {
				out = append(out, str)
			}
		}
	case []string:
		out = append(out, t...)
	}
	return out
}

func upper(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToUpper(v)
	}
	return values
}

// headerSet collects header parameter names, deduplicated case-insensitively and in
// first-seen order.
type headerSet struct {
	seen  map[string]struct{}
	names []string
}

func newHeaderSet() *headerSet {
	return &headerSet{seen: map[string]struct{}{}}
}

func (h *headerSet) collect(parameters interface{}) {
	if parameters == nil {
		return
	}
	var params []swg.Parameter
	if err := swag.FromDynamicJSON(parameters, &params); err != nil {
		log.WithFields(log.Fields{"error": err}).Debug("Ignoring malformed parameters")
		return
	}
	for _, param := range params {
		if !strings.EqualFold(param.In, "header") || param.Name == "" {
			continue
		}
		lower := strings.ToLower(param.Name)
		if _, ok := h.seen[lower]; ok {
			continue
		}
		h.seen[lower] = struct{}{}
		h.names = append(h.names, param.Name)
	}
}

func (h *headerSet) list() []string {
	return h.names
}
