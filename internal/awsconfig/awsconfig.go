// Package awsconfig centralizes AWS SDK configuration loading so every Lambda
// constructs its service clients the same way, including the custom endpoint
// override used against local emulators.
package awsconfig

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"

	"github.com/commercelab/invoice-saga/internal/config"
)

// Load builds an aws.Config for the given shared settings.
func Load(ctx context.Context, cfg config.AWS) (aws.Config, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}

	if cfg.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		})
		awsCfg.EndpointResolverWithOptions = customResolver
	}

	return awsCfg, nil
}
