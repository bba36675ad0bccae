package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akhettar/apigw-swagger-api/config"
	"github.com/akhettar/apigw-swagger-api/model"
	"github.com/akhettar/apigw-swagger-api/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	CheckMark = "✓"
	BallotX   = "✗"
)

const serviceConfig = `
service: pets
provider:
  stage: dev
custom:
  swaggerApi:
    usePackageVersion: true
    apis:
      PetsApi:
        Name: pets
        Lambda: PetsLambdaFunction
        Body:
          swagger: "2.0"
          info: {title: pets, version: "0.0.0"}
          paths:
            /pets:
              get: {}
              cors: true
      OrdersApi:
        Name: orders
        RestApiId: orders-id
        Stage: v1
        Body:
          paths:
            /orders:
              post: {x-lambda-name: CreateOrderLambdaFunction}
`

type recordingDeployer struct {
	physical map[string]string
	deployed []string
	messages []string
	fail     map[string]error
}

func (r *recordingDeployer) StackResources(context.Context, string) (map[string]string, error) {
	return r.physical, nil
}

func (r *recordingDeployer) CreateDeployment(_ context.Context, restAPIID, stage, description string) (string, error) {
	r.deployed = append(r.deployed, restAPIID+"@"+stage)
	r.messages = append(r.messages, description)
	return "dep", r.fail[restAPIID]
}

func loadConfig(t *testing.T, src string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "serverless.yml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"version": "2.3.1"}`), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestPublisher_BeforePackageFinalize(t *testing.T) {
	cfg := loadConfig(t, serviceConfig)
	tpl, err := template.Parse([]byte(`{"Resources": {"PetsLambdaFunction": {"Type": "AWS::Lambda::Function"}}}`), template.JSON)
	require.NoError(t, err)

	require.NoError(t, NewPublisher(cfg, nil).BeforePackageFinalize(tpl))

	resources := tpl.Resources()
	for _, name := range []string{
		"PetsLambdaFunction",
		"PetsApi", "PetsApiDeployment", "PetsApiServiceRole", "PetsApiPetsLambdaFunctionGETpetsPermission",
		"OrdersApi", "OrdersApiDeployment", "OrdersApiServiceRole", "OrdersApiCreateOrderLambdaFunctionPOSTordersPermission",
	} {
		assert.Contains(t, resources, name)
	}

	assert.Equal(t, "v1", resources["OrdersApiDeployment"].(model.Resource).Properties["StageName"])
	body := cfg.Custom.SwaggerAPI.APIs["PetsApi"].Body
	assert.Equal(t, "2.3.1", body["info"].(map[string]interface{})["version"])
	assert.Contains(t, body["paths"].(map[string]interface{})["/pets"], "options")
}

func TestPublisher_BeforePackageFinalizeRefusesToOverwrite(t *testing.T) {
	cfg := loadConfig(t, serviceConfig)
	tpl, err := template.Parse([]byte(`{"Resources": {"OrdersApi": {"Type": "AWS::SNS::Topic"}}}`), template.JSON)
	require.NoError(t, err)

	err = NewPublisher(cfg, nil).BeforePackageFinalize(tpl)

	assert.ErrorContains(t, err, "OrdersApi")
	assert.Equal(t, "AWS::SNS::Topic", tpl.Resources()["OrdersApi"].(map[string]interface{})["Type"])
	assert.Contains(t, tpl.Resources(), "PetsApi")
}

func TestPublisher_Refresh(t *testing.T) {

	t.Logf("Given two APIs where the first one fails to deploy")
	{
		cfg := loadConfig(t, serviceConfig)
		deployer := &recordingDeployer{
			physical: map[string]string{"PetsApi": "pets-id"},
			fail:     map[string]error{"orders-id": errors.New("BadRequestException")},
		}
		pub := NewPublisher(cfg, deployer)
		pub.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }

		t.Logf("\tWhen calling Refresh, both APIs should be attempted and the failure reported")
		{
			err := pub.Refresh(context.Background(), "")

			assert.ErrorContains(t, err, "OrdersApi: BadRequestException")
			assert.Equal(t, []string{"orders-id@v1", "pets-id@dev"}, deployer.deployed)
			assert.Equal(t, "Deployed by apigw-swagger-api at 2026-10-18T09:30:00Z", deployer.messages[0])
		}
	}
}

func TestPublisher_AfterDeploy(t *testing.T) {
	cfg := loadConfig(t, serviceConfig)
	deployer := &recordingDeployer{physical: map[string]string{"PetsApi": "pets-id"}}

	require.NoError(t, NewPublisher(cfg, deployer).AfterDeploy(context.Background()))
	assert.Len(t, deployer.deployed, 2)

	disabled := false
	cfg.Custom.SwaggerAPI.UpdateDeployments = &disabled
	deployer.deployed = nil
	require.NoError(t, NewPublisher(cfg, deployer).AfterDeploy(context.Background()))
	assert.Empty(t, deployer.deployed)
}

func TestPublisher_NothingConfigured(t *testing.T) {
	cfg := loadConfig(t, "service: pets\n")

	resources, err := NewPublisher(cfg, nil).Synthesize()
	require.NoError(t, err)
	assert.Empty(t, resources)
	assert.NoError(t, NewPublisher(cfg, nil).Refresh(context.Background(), "message"))
}

func TestPublisher_RefreshWithoutDeployer(t *testing.T) {
	cfg := loadConfig(t, serviceConfig)
	assert.ErrorIs(t, NewPublisher(cfg, nil).Refresh(context.Background(), "message"), errNoDeployer)
}

func TestPublisher_SynthesizeRejectsCollidingAPIs(t *testing.T) {

	t.Logf("Given two APIs whose generated names overlap")
	{
		cfg := loadConfig(t, `
service: pets
provider:
  stage: dev
custom:
  swaggerApi:
    apis:
      Pets:
        Lambda: PetsLambdaFunction
        Body: {paths: {/pets: {get: {}}}}
      PetsDeployment:
        Lambda: PetsLambdaFunction
        Body: {paths: {/pets: {get: {}}}}
`)

		t.Logf("\tWhen calling Synthesize, the colliding name should be reported")
		{
			resources, err := NewPublisher(cfg, nil).Synthesize()
			if err != nil {
				t.Logf("\t\tSynthesize should fail %v", CheckMark)
			} else {
				t.Errorf("\t\tSynthesize should fail %v", BallotX)
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "PetsDeployment")
			assert.Nil(t, resources)
		}

		t.Logf("\tWhen packaging, the template should be left untouched")
		{
			tpl, err := template.Parse([]byte(`{"Resources": {}}`), template.JSON)
			require.NoError(t, err)
			require.Error(t, NewPublisher(cfg, nil).BeforePackageFinalize(tpl))
			assert.Empty(t, tpl.Resources())
		}
	}
}
