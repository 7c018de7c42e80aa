// Package main implements the params CLI, which seeds the SSM parameters the
// courtwind binaries resolve at startup.
//
// Usage:
//
//	go run ./cmd/ops/params --env=dev
//	go run ./cmd/ops/params --env=prod --region=eu-west-1 --rotate-api-key
//	DATABASE_URL=postgres://... go run ./cmd/ops/params --env=staging --overwrite
//
// Secret values come from the environment (or a .env file). API_KEY is
// generated when neither the environment nor SSM has one. On success the tool
// prints the _SSM_PARAM pointer variables to set on the Lambda functions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// param is one SecureString the binaries read through an _SSM_PARAM pointer.
type param struct {
	EnvVar string
	Path   string
	// Generate creates a value when none is supplied and none exists.
	Generate func() (string, error)
}

// inventory lists every parameter, keyed by the variable it resolves into.
func inventory() []param {
	return []param{
		{EnvVar: "API_KEY", Path: "security/api_key", Generate: GenerateAPIKey},
		{EnvVar: "DATABASE_URL", Path: "database/url"},
		{EnvVar: "INFERENCE_API_KEY", Path: "inference/api_key"},
	}
}

type options struct {
	env          string
	region       string
	overwrite    bool
	rotateAPIKey bool
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.env, "env", "", "target environment: dev, staging or prod (required)")
	flag.StringVar(&o.region, "region", os.Getenv("AWS_REGION"), "AWS region")
	flag.BoolVar(&o.overwrite, "overwrite", false, "replace parameters that already exist")
	flag.BoolVar(&o.rotateAPIKey, "rotate-api-key", false, "generate a new API key even if one exists")
	flag.Parse()

	if !validEnvironments[o.env] {
		fmt.Fprintf(os.Stderr, "invalid --env %q (want dev, staging or prod)\n", o.env)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(o.region))
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	mgr := NewSSMManager(ssm.NewFromConfig(awsCfg), o.env, logger)
	if err := seed(ctx, mgr, o, os.LookupEnv, os.Stdout, logger); err != nil {
		logger.Error("seeding parameters failed", "error", err)
		os.Exit(1)
	}
}

// seed writes each parameter that has a value and prints pointer lines for
// every parameter present in SSM afterwards.
func seed(ctx context.Context, mgr *SSMManager, o options, lookup func(string) (string, bool), out io.Writer, logger *slog.Logger) error {
	for _, p := range inventory() {
		path := mgr.SSMPath(p.Path)
		exists, err := mgr.ParameterExists(ctx, path)
		if err != nil {
			return err
		}

		rotate := o.rotateAPIKey && p.Generate != nil
		value, _ := lookup(p.EnvVar)
		switch {
		case exists && !o.overwrite && !rotate:
			logger.Info("parameter exists, skipping", "path", path)
			fmt.Fprintf(out, "%s_SSM_PARAM=%s\n", p.EnvVar, path)
			continue
		case value == "" && p.Generate != nil && (!exists || rotate):
			if value, err = p.Generate(); err != nil {
				return err
			}
		case value == "":
			if exists {
				fmt.Fprintf(out, "%s_SSM_PARAM=%s\n", p.EnvVar, path)
			} else {
				logger.Warn("no value supplied, skipping", "path", path, "env_var", p.EnvVar)
			}
			continue
		}

		if err := mgr.PutSecret(ctx, path, value, exists); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s_SSM_PARAM=%s\n", p.EnvVar, path)
	}
	return nil
}
