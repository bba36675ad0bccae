// Package apigw forces fresh API Gateway stage deployments after a stack update.
package apigw

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Deployer is the control-plane surface the refresher needs.
type Deployer interface {
	StackResources(ctx context.Context, stackName string) (map[string]string, error)
	CreateDeployment(ctx context.Context, restAPIID, stage, description string) (string, error)
}

// Target is one API to redeploy. RestAPIID may be empty, in which case it is looked up
// in the stack by the API key, which is the RestApi logical id.
type Target struct {
	Key       string
	RestAPIID string
	Stage     string
}

// Outcome is the result of redeploying one API.
type Outcome struct {
	Key          string
	RestAPIID    string
	DeploymentID string
	Err          error
}

// Report lists the outcome of every target, in processing order.
type Report struct {
	Outcomes []Outcome
}

// Failed returns the outcomes that carry an error.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins the failures, or returns nil when every target was deployed.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", o.Key, o.Err))
	}
	return errors.Join(errs...)
}

// Refresher creates new deployments for the APIs of a stack.
type Refresher struct {
	deployer  Deployer
	stackName string
}

// NewRefresher returns a refresher resolving physical ids in stackName.
func NewRefresher(deployer Deployer, stackName string) *Refresher {
	return &Refresher{deployer: deployer, stackName: stackName}
}

// Refresh redeploys every target. A failing target is logged and recorded; the
// remaining targets are still processed.
func (r *Refresher) Refresh(ctx context.Context, targets []Target, description string) Report {
	var (
		report    Report
		physical  map[string]string
		lookupErr error
		looked    bool
	)

	for _, target := range targets {
		outcome := Outcome{Key: target.Key, RestAPIID: target.RestAPIID}

		if outcome.RestAPIID == "" {
			if !looked {
				physical, lookupErr = r.deployer.StackResources(ctx, r.stackName)
				looked = true
			}
			switch {
			case lookupErr != nil:
				outcome.Err = lookupErr
			case physical[target.Key] == "":
				outcome.Err = fmt.Errorf("no physical id for %s in stack %s", target.Key, r.stackName)
			default:
				outcome.RestAPIID = physical[target.Key]
			}
		}

		if outcome.Err == nil {
			outcome.DeploymentID, outcome.Err = r.deployer.CreateDeployment(ctx, outcome.RestAPIID, target.Stage, description)
		}

		fields := log.Fields{"api": target.Key, "restApiId": outcome.RestAPIID, "stage": target.Stage}
		if outcome.Err != nil {
			log.WithFields(fields).WithError(outcome.Err).Error("Failed to refresh API deployment ❌")
		} else {
			log.WithFields(fields).WithField("deployment", outcome.DeploymentID).Info("API deployment refreshed ✅")
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}
