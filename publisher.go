package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/akhettar/apigw-swagger-api/apigw"
	"github.com/akhettar/apigw-swagger-api/config"
	"github.com/akhettar/apigw-swagger-api/model"
	"github.com/akhettar/apigw-swagger-api/swagger"
	"github.com/akhettar/apigw-swagger-api/template"
	"github.com/akhettar/apigw-swagger-api/utils"
	log "github.com/sirupsen/logrus"
)

var errNoDeployer = errors.New("no deployment client configured")

// Publisher implements the packaging and deployment hooks for the APIs of one service.
type Publisher struct {
	cfg      *config.Config
	deployer apigw.Deployer
	now      func() time.Time
}

// NewPublisher creates a publisher. deployer may be nil when only packaging.
func NewPublisher(cfg *config.Config, deployer apigw.Deployer) *Publisher {
	return &Publisher{cfg: cfg, deployer: deployer, now: time.Now}
}

// apiKeys returns the configured API keys in a stable order.
func (pub *Publisher) apiKeys() []string {
	apis := pub.cfg.Custom.SwaggerAPI.APIs
	keys := make([]string, 0, len(apis))
	for key := range apis {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Synthesize generates the resources of every configured API.
func (pub *Publisher) Synthesize() (model.ResourceMap, error) {
	settings := pub.cfg.Custom.SwaggerAPI
	if len(settings.APIs) == 0 {
		log.Info("No APIs configured, nothing to do")
		return model.ResourceMap{}, nil
	}

	if settings.UsePackageVersion {
		version, err := utils.PackageVersion(pub.cfg.Dir)
		if err != nil {
			return nil, err
		}
		for _, key := range pub.apiKeys() {
			settings.APIs[key].SetVersion(version)
		}
		log.WithFields(log.Fields{"version": version}).Info("Stamped package version on API documents")
	}

	stack := pub.cfg.StackContext()
	resources := model.ResourceMap{}
	var collisions []string
	for _, key := range pub.apiKeys() {
		generated := swagger.Synthesize(key, settings.APIs[key], stack)
		for _, name := range generated.Names() {
			if existing, ok := resources[name]; ok {
				log.WithFields(log.Fields{"api": key, "resource": name, "owner": existing.Metadata[model.GeneratedMarker]}).
					Warn("Resource already generated by another API ❌")
				collisions = append(collisions, name)
				continue
			}
			resources[name] = generated[name]
		}
	}
	if len(collisions) > 0 {
		return nil, fmt.Errorf("resources generated by more than one API: %v", collisions)
	}
	return resources, nil
}

// BeforePackageFinalize merges the generated resources into the compiled template.
func (pub *Publisher) BeforePackageFinalize(tpl *template.Template) error {
	resources, err := pub.Synthesize()
	if err != nil {
		return err
	}

	byAPI := map[string]model.ResourceMap{}
	for name, resource := range resources {
		key, _ := resource.Metadata[model.GeneratedMarker].(string)
		if byAPI[key] == nil {
			byAPI[key] = model.ResourceMap{}
		}
		byAPI[key][name] = resource
	}

	var conflicts []string
	for _, key := range pub.apiKeys() {
		conflicts = append(conflicts, tpl.Merge(key, byAPI[key])...)
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("resources already defined in template: %v", conflicts)
	}
	return nil
}

// AfterDeploy refreshes the API deployments unless updateDeployments is off.
func (pub *Publisher) AfterDeploy(ctx context.Context) error {
	if !pub.cfg.Custom.SwaggerAPI.ShouldUpdateDeployments() {
		log.Info("updateDeployments is disabled, skipping deployment refresh")
		return nil
	}
	return pub.Refresh(ctx, "")
}

// Refresh creates a new deployment of every API. An empty message gets a timestamped default.
func (pub *Publisher) Refresh(ctx context.Context, message string) error {
	keys := pub.apiKeys()
	if len(keys) == 0 {
		log.Info("No APIs configured, nothing to refresh")
		return nil
	}
	if pub.deployer == nil {
		return errNoDeployer
	}
	if message == "" {
		message = fmt.Sprintf("Deployed by apigw-swagger-api at %s", pub.now().UTC().Format(time.RFC3339))
	}

	targets := make([]apigw.Target, 0, len(keys))
	for _, key := range keys {
		api := pub.cfg.Custom.SwaggerAPI.APIs[key]
		targets = append(targets, apigw.Target{
			Key:       key,
			RestAPIID: api.RestAPIID,
			Stage:     api.StageOr(pub.cfg.Provider.Stage),
		})
	}

	report := apigw.NewRefresher(pub.deployer, pub.cfg.StackName()).Refresh(ctx, targets, message)
	return report.Err()
}
