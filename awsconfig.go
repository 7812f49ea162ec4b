package s3kit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/s3types"
)

// FromAWSConfig creates a Client from the AWS shared config and credentials
// files. Empty paths default to ~/.aws/config and ~/.aws/credentials, and an
// empty profile means "default". Values in the credentials file take
// precedence over the config file; the region additionally falls back to
// AWS_DEFAULT_REGION and then us-east-1. Trailing opts are applied after the
// loaded values and may override them.
func FromAWSConfig(profile, configPath, credentialsPath string, opts ...s3types.Option) (*Client, error) {
	const op = "fromAWSConfig"
	if profile == "" {
		profile = "default"
	}
	if configPath == "" || credentialsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, s3errors.Wrap(op, s3errors.KindSigning, err)
		}
		if configPath == "" {
			configPath = filepath.Join(home, ".aws", "config")
		}
		if credentialsPath == "" {
			credentialsPath = filepath.Join(home, ".aws", "credentials")
		}
	}

	configValues := loadProfile(configPath, configSection(profile))
	credValues := loadProfile(credentialsPath, profile)

	pick := func(key string) string {
		if v := credValues[key]; v != "" {
			return v
		}
		return configValues[key]
	}

	accessKey := pick("aws_access_key_id")
	secretKey := pick("aws_secret_access_key")
	if accessKey == "" || secretKey == "" {
		return nil, s3errors.New(op, s3errors.KindSigning,
			fmt.Sprintf("no credentials found for profile %q in config or credentials files", profile))
	}

	region := pick("region")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	loaded := []s3types.Option{
		WithCredentials(accessKey, secretKey),
		WithRegion(region),
	}
	if token := pick("aws_session_token"); token != "" {
		loaded = append(loaded, WithSessionToken(token))
	}
	if endpoint := pick("endpoint_url"); endpoint != "" {
		loaded = append(loaded, WithEndpoint(endpoint))
	}
	return New(append(loaded, opts...)...)
}

// FromEnv creates a Client from the standard AWS environment variables:
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, and optionally
// AWS_SESSION_TOKEN, AWS_REGION (or AWS_DEFAULT_REGION), and
// AWS_ENDPOINT_URL. Trailing opts may override the loaded values.
func FromEnv(opts ...s3types.Option) (*Client, error) {
	const op = "fromEnv"

	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, s3errors.New(op, s3errors.KindSigning,
			"AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}

	loaded := []s3types.Option{WithCredentials(accessKey, secretKey)}
	if token := os.Getenv("AWS_SESSION_TOKEN"); token != "" {
		loaded = append(loaded, WithSessionToken(token))
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region != "" {
		loaded = append(loaded, WithRegion(region))
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		loaded = append(loaded, WithEndpoint(endpoint))
	}
	return New(append(loaded, opts...)...)
}

// configSection maps a profile name to its section header in the config
// file, which prefixes every profile except default with "profile ".
func configSection(profile string) string {
	if profile == "default" {
		return profile
	}
	return "profile " + profile
}

// loadProfile reads one section of an INI file. A missing file or section
// is not an error; it simply yields no values.
func loadProfile(path, section string) map[string]string {
	f, err := ini.LooseLoad(path)
	if err != nil {
		return nil
	}
	sec, err := f.GetSection(section)
	if err != nil {
		return nil
	}
	return sec.KeysHash()
}
