// Package config loads the deployment configuration holding the swaggerApi block.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akhettar/apigw-swagger-api/model"
	"github.com/akhettar/apigw-swagger-api/utils"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	StageNameVarKey   = "STAGE_NAME"
	ServiceNameVarKey = "SERVICE_NAME"
	RegionVarKey      = "AWS_REGION"

	DefaultStage  = "dev"
	DefaultRegion = "eu-west-1"
)

var validate = validator.New()

// Config is the subset of the deployment configuration this tool reads.
type Config struct {
	Service  string   `yaml:"service" validate:"required"`
	Provider Provider `yaml:"provider"`
	Custom   Custom   `yaml:"custom"`

	// Dir is the directory of the configuration file. BodyFile and package metadata
	// are resolved against it.
	Dir string `yaml:"-"`
}

// Provider holds the deployment target.
type Provider struct {
	Stage     string `yaml:"stage" validate:"required"`
	Region    string `yaml:"region"`
	StackName string `yaml:"stackName"`
}

// Custom is the custom section of the configuration.
type Custom struct {
	SwaggerAPI Settings `yaml:"swaggerApi"`
}

// Settings is the swaggerApi block.
type Settings struct {
	APIs              map[string]*model.APIDefinition `yaml:"apis" validate:"dive"`
	UpdateDeployments *bool                           `yaml:"updateDeployments"`
	UsePackageVersion bool                            `yaml:"usePackageVersion"`
	RoleNameSeed      string                          `yaml:"roleNameSeed" validate:"omitempty,oneof=stack stage"`
}

// ShouldUpdateDeployments reports whether the post-deploy refresh runs. Defaults to true.
func (s Settings) ShouldUpdateDeployments() bool {
	return s.UpdateDeployments == nil || *s.UpdateDeployments
}

// StackName is the CloudFormation stack the service deploys to.
func (c *Config) StackName() string {
	if c.Provider.StackName != "" {
		return c.Provider.StackName
	}
	return fmt.Sprintf("%s-%s", c.Service, c.Provider.Stage)
}

// StackContext returns the values the synthesizer reads from the service.
func (c *Config) StackContext() model.StackContext {
	seed := c.Custom.SwaggerAPI.RoleNameSeed
	if seed == "" {
		seed = model.SeedStack
	}
	return model.StackContext{
		Stage:        c.Provider.Stage,
		ServiceName:  c.Service,
		StackName:    c.StackName(),
		RoleNameSeed: seed,
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	if err := cfg.loadBodies(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration, applies environment defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Service == "" {
		cfg.Service = utils.FetchEnvVar(ServiceNameVarKey, "")
	}
	if cfg.Provider.Stage == "" {
		cfg.Provider.Stage = utils.FetchEnvVar(StageNameVarKey, DefaultStage)
	}
	if cfg.Provider.Region == "" {
		cfg.Provider.Region = utils.FetchEnvVar(RegionVarKey, DefaultRegion)
	}
	for key, api := range cfg.Custom.SwaggerAPI.APIs {
		if api == nil {
			return nil, fmt.Errorf("api %q has no definition", key)
		}
		model.Normalize(api.Body)
		model.Normalize(api.Properties)
	}
	if err := validate.Struct(&cfg); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("invalid configuration: %s", invalid.Error())
		}
		return nil, err
	}
	return &cfg, nil
}

// loadBodies reads the BodyFile of every API that has no inline Body.
func (c *Config) loadBodies() error {
	for key, api := range c.Custom.SwaggerAPI.APIs {
		if api.Body != nil || api.BodyFile == "" {
			continue
		}
		path := api.BodyFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.Dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("api %s: reading body: %w", key, err)
		}
		var body map[string]interface{}
		if err := yaml.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("api %s: decoding body: %w", key, err)
		}
		model.Normalize(body)
		api.Body = body
	}
	return nil
}
