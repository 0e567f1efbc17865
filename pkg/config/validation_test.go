package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johnwbyrd/semihost/pkg/policystore"
)

func TestValidateRejectsShortAuthSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Secret = "too-short"

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRejectsMissingSandboxRootWhenKindIsSandbox(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Kind = BackendSandbox
	cfg.Backend.Sandbox.Root = ""

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRejectsMissingS3BucketWhenKindIsS3(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Kind = BackendS3
	cfg.Backend.S3.Region = "us-east-1"
	cfg.Backend.S3.Bucket = ""

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateAcceptsS3BackendWithBucketAndRegion(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Kind = BackendS3
	cfg.Backend.S3.Region = "us-east-1"
	cfg.Backend.S3.Bucket = "my-bucket"

	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "VERBOSE"

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidatePropagatesPolicyStoreErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Policy.Type = policystore.DatabaseTypePostgres
	cfg.Policy.Postgres.Host = ""
	cfg.Policy.Postgres.Database = ""

	err := Validate(cfg)
	assert.Error(t, err)
}
