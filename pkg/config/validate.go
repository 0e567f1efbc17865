package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a Config's struct tags (via go-playground/validator/v10)
// and the cross-field constraints the tags can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	switch cfg.Backend.Kind {
	case BackendSandbox:
		if cfg.Backend.Sandbox.Root == "" {
			return fmt.Errorf("backend.sandbox.root is required when backend.kind is %q", BackendSandbox)
		}
	case BackendS3:
		if cfg.Backend.S3.Bucket == "" {
			return fmt.Errorf("backend.s3.bucket is required when backend.kind is %q", BackendS3)
		}
	}

	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	return nil
}
