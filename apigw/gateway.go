package apigw

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigateway"
	"github.com/aws/aws-sdk-go/service/apigateway/apigatewayiface"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"
	log "github.com/sirupsen/logrus"
)

const AssumeRole = "ASSUME_ROLE"

// Client talks to the API Gateway and CloudFormation control planes.
type Client struct {
	apigw apigatewayiface.APIGatewayAPI
	cfn   cloudformationiface.CloudFormationAPI
}

// NewClient creates a client for region.
// Credentials come from the SDK's default chain: the environment, shared credentials
// (~/.aws/credentials) or the instance role. When ASSUME_ROLE is set the role is assumed
// on top of them, which is how the tool is run locally against another account.
func NewClient(region string) *Client {
	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))

	if urn, ok := os.LookupEnv(AssumeRole); ok && urn != "" {
		log.WithFields(log.Fields{"role": urn}).Info("Running with assumed role")
		cfg := &aws.Config{Credentials: stscreds.NewCredentials(sess, urn)}
		return NewClientWithAPIs(apigateway.New(sess, cfg), cloudformation.New(sess, cfg))
	}
	return NewClientWithAPIs(apigateway.New(sess), cloudformation.New(sess))
}

// NewClientWithAPIs wraps already configured service clients.
func NewClientWithAPIs(gw apigatewayiface.APIGatewayAPI, cfn cloudformationiface.CloudFormationAPI) *Client {
	return &Client{apigw: gw, cfn: cfn}
}

// CreateDeployment deploys the current state of a REST API to stage.
func (cl *Client) CreateDeployment(ctx context.Context, restAPIID, stage, description string) (string, error) {
	log.WithFields(log.Fields{"stage": stage, "API GatewayId": restAPIID}).Info("Deploying API")
	out, err := cl.apigw.CreateDeploymentWithContext(ctx, &apigateway.CreateDeploymentInput{
		RestApiId:   aws.String(restAPIID),
		StageName:   aws.String(stage),
		Description: aws.String(description),
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.Id), nil
}

// StackResources maps the logical ids of a stack's resources to their physical ids.
func (cl *Client) StackResources(ctx context.Context, stackName string) (map[string]string, error) {
	resources := map[string]string{}
	input := &cloudformation.ListStackResourcesInput{StackName: aws.String(stackName)}
	err := cl.cfn.ListStackResourcesPagesWithContext(ctx, input, func(page *cloudformation.ListStackResourcesOutput, _ bool) bool {
		for _, summary := range page.StackResourceSummaries {
			resources[aws.StringValue(summary.LogicalResourceId)] = aws.StringValue(summary.PhysicalResourceId)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("listing resources of stack %s: %w", stackName, err)
	}
	return resources, nil
}
