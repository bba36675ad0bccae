package apigw

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// CheckMark used for unit test highlight.
	CheckMark = "✓"

	// BallotX used for unit test highlight.
	BallotX = "✗"
)

type deployCall struct {
	restAPIID, stage, description string
}

type fakeDeployer struct {
	physical  map[string]string
	lookupErr error
	failFor   map[string]error
	lookups   int
	calls     []deployCall
}

func (f *fakeDeployer) StackResources(_ context.Context, _ string) (map[string]string, error) {
	f.lookups++
	return f.physical, f.lookupErr
}

func (f *fakeDeployer) CreateDeployment(_ context.Context, restAPIID, stage, description string) (string, error) {
	f.calls = append(f.calls, deployCall{restAPIID, stage, description})
	if err := f.failFor[restAPIID]; err != nil {
		return "", err
	}
	return "dep-" + restAPIID, nil
}

func TestRefresh_FailureDoesNotStopRemainingAPIs(t *testing.T) {

	t.Logf("Given two APIs where the first one fails to deploy")
	{
		deployer := &fakeDeployer{
			physical: map[string]string{"A": "id-a", "B": "id-b"},
			failFor:  map[string]error{"id-a": errors.New("TooManyRequestsException")},
		}
		refresher := NewRefresher(deployer, "pets-dev")

		t.Logf("\tWhen calling Refresh, the second API should still be deployed")
		{
			report := refresher.Refresh(context.Background(), []Target{{Key: "A", Stage: "dev"}, {Key: "B", Stage: "dev"}}, "release")

			require.Len(t, report.Outcomes, 2)
			if report.Outcomes[1].Err == nil && report.Outcomes[1].DeploymentID == "dep-id-b" {
				t.Logf("\t\tAPI B should be deployed %v", CheckMark)
			} else {
				t.Errorf("\t\tAPI B should be deployed, got %+v %v", report.Outcomes[1], BallotX)
			}
			assert.Error(t, report.Outcomes[0].Err)
			assert.Len(t, report.Failed(), 1)
			assert.ErrorContains(t, report.Err(), "A: TooManyRequestsException")
			assert.Equal(t, []deployCall{{"id-a", "dev", "release"}, {"id-b", "dev", "release"}}, deployer.calls)
			assert.Equal(t, 1, deployer.lookups)
		}
	}
}

func TestRefresh_UnresolvableAPIIsReported(t *testing.T) {
	deployer := &fakeDeployer{physical: map[string]string{"B": "id-b"}}

	report := NewRefresher(deployer, "pets-dev").Refresh(context.Background(),
		[]Target{{Key: "A", Stage: "dev"}, {Key: "B", Stage: "prod"}}, "msg")

	require.Len(t, report.Outcomes, 2)
	assert.ErrorContains(t, report.Outcomes[0].Err, "no physical id for A in stack pets-dev")
	assert.NoError(t, report.Outcomes[1].Err)
	assert.Equal(t, []deployCall{{"id-b", "prod", "msg"}}, deployer.calls)
}

func TestRefresh_LookupFailureFailsOnlyUnconfiguredAPIs(t *testing.T) {
	deployer := &fakeDeployer{lookupErr: errors.New("stack pets-dev does not exist")}

	report := NewRefresher(deployer, "pets-dev").Refresh(context.Background(),
		[]Target{{Key: "A", Stage: "dev"}, {Key: "B", RestAPIID: "configured", Stage: "dev"}, {Key: "C", Stage: "dev"}}, "msg")

	require.Len(t, report.Outcomes, 3)
	assert.Error(t, report.Outcomes[0].Err)
	assert.NoError(t, report.Outcomes[1].Err)
	assert.Equal(t, "dep-configured", report.Outcomes[1].DeploymentID)
	assert.Error(t, report.Outcomes[2].Err)
	assert.Equal(t, 1, deployer.lookups)
	assert.Len(t, report.Failed(), 2)
}

func TestRefresh_AllSucceed(t *testing.T) {
	deployer := &fakeDeployer{}

	report := NewRefresher(deployer, "pets-dev").Refresh(context.Background(),
		[]Target{{Key: "A", RestAPIID: "id-a", Stage: "dev"}}, "msg")

	assert.NoError(t, report.Err())
	assert.Empty(t, report.Failed())
	assert.Zero(t, deployer.lookups)
}
