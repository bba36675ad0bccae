// Package swagger turns an OpenAPI document into the API Gateway resources of a
// CloudFormation template, annotating the document's operations with
// x-amazon-apigateway-integration blocks on the way.
package swagger

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/akhettar/apigw-swagger-api/model"
	"github.com/akhettar/apigw-swagger-api/utils"
	"github.com/go-openapi/swag"
	log "github.com/sirupsen/logrus"
)

const (
	IntegrationExtension = "x-amazon-apigateway-integration"
	LambdaNameExtension  = "x-lambda-name"

	RoleSuffix   = "APIRole"
	PolicySuffix = "APIPolicy"

	invokeAction = "lambda:InvokeFunction"
)

// Methods is the closed set of path item keys treated as operations, in emission order.
var Methods = []string{"get", "post", "put", "patch", "delete", "head", "options"}

var (
	nonAlphaNumRegexp = regexp.MustCompile("[^A-Za-z0-9]")
	pathParamRegexp   = regexp.MustCompile(`\{[^}]*\}`)
	logicalIDRegexp   = regexp.MustCompile("^[A-Za-z0-9]+$")
)

// Synthesize returns the resources for the API registered under key: the RestApi, its
// deployment, the gateway service role and one Lambda permission per wired route.
// Every operation wired to a Lambda is annotated in place with a proxy integration.
func Synthesize(key string, api *model.APIDefinition, stack model.StackContext) model.ResourceMap {
	stage := api.StageOr(stack.Stage)
	routes := map[string]map[string]struct{}{}

	paths := api.Paths()
	for _, path := range sortedKeys(paths) {
		item, ok := paths[path].(map[string]interface{})
		if !ok {
			continue
		}

		methods := pathMethods(item)
		headers := newHeaderSet()
		headers.collect(item["parameters"])

		for _, method := range methods {
			op := item[method].(map[string]interface{})
			headers.collect(op["parameters"])

			target, manual := resolveTarget(op, api.Lambda)
			fields := log.Fields{"api": key, "path": path, "method": method}
			if manual {
				log.WithFields(fields).Debug("Keeping manually defined integration")
				continue
			}
			if target == "" {
				log.WithFields(fields).Warn("No lambda resolved for operation, skipping")
				continue
			}
			if !logicalIDRegexp.MatchString(target) {
				log.WithFields(fields).WithField("lambda", target).Warn("Lambda is not a valid logical id, skipping")
				continue
			}

			op[LambdaNameExtension] = target
			op[IntegrationExtension] = proxyIntegration(target)

			if routes[target] == nil {
				routes[target] = map[string]struct{}{}
			}
			routes[target][strings.ToUpper(method)+path] = struct{}{}
		}

		addCORS(key, path, item, methods, headers.list())
	}

	resources := model.ResourceMap{}
	targets := sortedKeys(routes)
	for _, target := range targets {
		for _, route := range sortedKeys(routes[target]) {
			resources[PermissionName(key, target, route)] = permission(key, target, route)
		}
	}

	resources[key] = restAPI(key, api)
	resources[key+"Deployment"] = model.Resource{
		Type: model.DeploymentType,
		Properties: map[string]interface{}{
			"RestApiId": model.Ref(key),
			"StageName": stage,
		},
		DependsOn: []string{key},
	}
	resources[key+"ServiceRole"] = serviceRole(stack.NameSeed(key), targets)

	for name, resource := range resources {
		resource.Metadata = map[string]interface{}{model.GeneratedMarker: key}
		resources[name] = resource
	}

	log.WithFields(log.Fields{"api": key, "stage": stage, "lambdas": len(targets), "resources": len(resources)}).
		Info("Synthesized API resources")
	return resources
}

// PermissionName is the logical id of the invoke permission of one route.
func PermissionName(key, target, route string) string {
	return nonAlphaNumRegexp.ReplaceAllString(key+target+route, "") + "Permission"
}

// pathMethods returns the operation keys of a path item, skipping vendor extensions
// and anything else that is not an HTTP method holding an object.
func pathMethods(item map[string]interface{}) []string {
	var methods []string
	for _, method := range Methods {
		if _, ok := item[method].(map[string]interface{}); ok {
			methods = append(methods, method)
		}
	}
	return methods
}

// resolveTarget reports the Lambda an operation is wired to. manual is set when the
// operation carries its own integration and names no Lambda.
func resolveTarget(op map[string]interface{}, fallback string) (target string, manual bool) {
	if name, ok := op[LambdaNameExtension].(string); ok && name != "" {
		return name, false
	}
	if _, ok := op[IntegrationExtension]; ok {
		return "", true
	}
	return fallback, false
}

func proxyIntegration(target string) interface{} {
	integration := model.AWSAPIGatewayIntegration{
		URI: model.Sub(fmt.Sprintf(
			"arn:aws:apigateway:${AWS::Region}:lambda:path/2015-03-31/functions/${%s.Arn}/invocations", target)),
		IntegrationType:     "aws_proxy",
		HTTPMethod:          "POST",
		PassthroughBehavior: "when_no_match",
		Responses:           map[string]map[string]interface{}{},
	}
	return swag.ToDynamicJSON(integration)
}

func permission(key, target, route string) model.Resource {
	sourceRoute := pathParamRegexp.ReplaceAllString(route, "*")
	return model.Resource{
		Type: model.LambdaPermissionType,
		Properties: map[string]interface{}{
			"FunctionName": model.GetAtt(target, "Arn"),
			"Action":       invokeAction,
			"Principal":    model.Sub("apigateway.${AWS::URLSuffix}"),
			"SourceArn": model.Sub(fmt.Sprintf(
				"arn:aws:execute-api:${AWS::Region}:${AWS::AccountId}:${%s}/*/%s", key, sourceRoute)),
		},
	}
}

func restAPI(key string, api *model.APIDefinition) model.Resource {
	props := make(map[string]interface{}, len(api.Properties)+2)
	for k, v := range api.Properties {
		props[k] = v
	}
	name := api.Name
	if name == "" {
		name = key
	}
	props["Name"] = name
	if api.Body != nil {
		props["Body"] = api.Body
	}
	return model.Resource{Type: model.RestAPIType, Properties: props}
}

// serviceRole grants API Gateway invoke rights on each referenced Lambda, one statement per Lambda.
func serviceRole(seed string, targets []string) model.Resource {
	props := map[string]interface{}{
		"RoleName": utils.ClipName(seed, RoleSuffix),
		"AssumeRolePolicyDocument": model.PolicyDocument{
			Version: model.PolicyVersion,
			Statement: []model.PolicyStatement{{
				Effect:    "Allow",
				Principal: map[string]interface{}{"Service": "apigateway.amazonaws.com"},
				Action:    "sts:AssumeRole",
			}},
		},
	}

	if len(targets) > 0 {
		statements := make([]model.PolicyStatement, 0, len(targets))
		for _, target := range targets {
			statements = append(statements, model.PolicyStatement{
				Effect:   "Allow",
				Action:   invokeAction,
				Resource: model.GetAtt(target, "Arn"),
			})
		}
		props["Policies"] = []model.InlinePolicy{{
			PolicyName: utils.ClipName(seed, PolicySuffix),
			PolicyDocument: model.PolicyDocument{
				Version:   model.PolicyVersion,
				Statement: statements,
			},
		}}
	}
	return model.Resource{Type: model.RoleType, Properties: props}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
