package model

import "sort"

// CloudFormation resource types emitted for every API.
const (
	RestAPIType          = "AWS::ApiGateway::RestApi"
	DeploymentType       = "AWS::ApiGateway::Deployment"
	RoleType             = "AWS::IAM::Role"
	LambdaPermissionType = "AWS::Lambda::Permission"

	PolicyVersion = "2012-10-17"

	// GeneratedMarker is the Metadata key stamped on every generated resource. Its value is the API key.
	GeneratedMarker = "apigw-swagger-api:generated"
)

// AWSAPIGatewayIntegration the custom x-amazon-apigateway-integration added to our Swagger Docs to tell API GW what to do
type AWSAPIGatewayIntegration struct {
	URI                 interface{}                       `json:"uri,omitempty"`
	IntegrationType     string                            `json:"type"`
	HTTPMethod          string                            `json:"httpMethod,omitempty"`
	PassthroughBehavior string                            `json:"passthroughBehavior"`
	RequestParameters   map[string]string                 `json:"requestParameters,omitempty"`
	RequestTemplates    map[string]string                 `json:"requestTemplates,omitempty"`
	Responses           map[string]map[string]interface{} `json:"responses"`
}

// Resource is a single entry of the CloudFormation Resources section.
type Resource struct {
	Type       string                 `json:"Type" yaml:"Type"`
	Properties map[string]interface{} `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string               `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
	Metadata   map[string]interface{} `json:"Metadata,omitempty" yaml:"Metadata,omitempty"`
}

// ResourceMap maps logical resource ids to their definitions.
type ResourceMap map[string]Resource

// Names returns the logical ids in sorted order.
func (m ResourceMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PolicyDocument represents an IAM policy document.
type PolicyDocument struct {
	Version   string            `json:"Version" yaml:"Version"`
	Statement []PolicyStatement `json:"Statement" yaml:"Statement"`
}

// PolicyStatement represents an IAM policy statement.
type PolicyStatement struct {
	Effect    string      `json:"Effect" yaml:"Effect"`
	Principal interface{} `json:"Principal,omitempty" yaml:"Principal,omitempty"`
	Action    string      `json:"Action" yaml:"Action"`
	Resource  interface{} `json:"Resource,omitempty" yaml:"Resource,omitempty"`
}

// InlinePolicy is an entry of the AWS::IAM::Role Policies list.
type InlinePolicy struct {
	PolicyName     string         `json:"PolicyName" yaml:"PolicyName"`
	PolicyDocument PolicyDocument `json:"PolicyDocument" yaml:"PolicyDocument"`
}

// Sub builds an Fn::Sub intrinsic.
func Sub(s string) map[string]interface{} {
	return map[string]interface{}{"Fn::Sub": s}
}

// Ref builds a Ref intrinsic.
func Ref(logicalID string) map[string]interface{} {
	return map[string]interface{}{"Ref": logicalID}
}

// GetAtt builds an Fn::GetAtt intrinsic.
func GetAtt(logicalID, attribute string) map[string]interface{} {
	return map[string]interface{}{"Fn::GetAtt": []interface{}{logicalID, attribute}}
}
