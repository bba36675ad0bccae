package main

import (
	"encoding/json"
	"os"

	"github.com/akhettar/apigw-swagger-api/apigw"
	"github.com/akhettar/apigw-swagger-api/config"
	"github.com/akhettar/apigw-swagger-api/template"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("Command failed ❌")
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   "apigw-swagger-api",
		Short: "Generate API Gateway resources from OpenAPI documents",
		Long: `apigw-swagger-api adds a REST API, its deployment, an invoke role and Lambda
permissions to a compiled CloudFormation template for every API declared under
custom.swaggerApi, and forces fresh stage deployments once the stack is updated.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "serverless.yml", "Path to the service configuration")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newPackageCmd(&configPath),
		newSynthCmd(&configPath),
		newPostDeployCmd(&configPath),
		newRefreshCmd(&configPath),
	)
	return root
}

func newPackageCmd(configPath *string) *cobra.Command {
	var templatePath, outputPath string

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Add the API resources to a compiled CloudFormation template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tpl, err := template.Load(templatePath)
			if err != nil {
				return err
			}
			if err := NewPublisher(cfg, nil).BeforePackageFinalize(tpl); err != nil {
				return err
			}
			if outputPath == "" {
				outputPath = templatePath
			}
			log.WithFields(log.Fields{"template": outputPath}).Info("Writing template")
			return tpl.Save(outputPath)
		},
	}
	cmd.Flags().StringVarP(&templatePath, "template", "t", ".serverless/cloudformation-template-update-stack.json", "Compiled template to extend")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: overwrite the template)")
	return cmd
}

func newSynthCmd(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Print the generated resources without touching a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			resources, err := NewPublisher(cfg, nil).Synthesize()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == string(template.YAML) {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(resources); err != nil {
					return err
				}
				return enc.Close()
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resources)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}

func newPostDeployCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "post-deploy",
		Short: "Refresh API deployments unless updateDeployments is false",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return NewPublisher(cfg, apigw.NewClient(cfg.Provider.Region)).AfterDeploy(cmd.Context())
		},
	}
}

func newRefreshCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [message]",
		Short: "Create a new deployment of every API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			var message string
			if len(args) == 1 {
				message = args[0]
			}
			if err := NewPublisher(cfg, apigw.NewClient(cfg.Provider.Region)).Refresh(cmd.Context(), message); err != nil {
				return err
			}
			log.Info("API deployments refreshed ✅")
			return nil
		},
	}
}
