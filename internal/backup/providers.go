package backup

import (
	"fmt"
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// Provider identifiers stored on backup credentials.
const (
	ProviderAWS   = "aws"
	ProviderMinIO = "minio"
	ProviderR2    = "r2"
)

// awsEndpoints maps AWS regions to their S3 endpoints.
var awsEndpoints = map[string]string{
	"us-east-1":      "s3.amazonaws.com",
	"us-east-2":      "s3.us-east-2.amazonaws.com",
	"us-west-1":      "s3.us-west-1.amazonaws.com",
	"us-west-2":      "s3.us-west-2.amazonaws.com",
	"eu-west-1":      "s3.eu-west-1.amazonaws.com",
	"eu-west-2":      "s3.eu-west-2.amazonaws.com",
	"eu-central-1":   "s3.eu-central-1.amazonaws.com",
	"eu-north-1":     "s3.eu-north-1.amazonaws.com",
	"ap-northeast-1": "s3.ap-northeast-1.amazonaws.com",
	"ap-southeast-1": "s3.ap-southeast-1.amazonaws.com",
	"ap-southeast-2": "s3.ap-southeast-2.amazonaws.com",
	"ap-south-1":     "s3.ap-south-1.amazonaws.com",
	"ca-central-1":   "s3.ca-central-1.amazonaws.com",
	"sa-east-1":      "s3.sa-east-1.amazonaws.com",
}

// AWSConfig configures an AWS S3 bucket.
type AWSConfig struct {
	BucketName string
	AccessKey  string
	SecretKey  string
	Region     string // defaults to us-east-1
}

// NewAWSClient builds a client for AWS S3. AWS uses virtual-host
// addressing (bucket.s3.region.amazonaws.com).
func NewAWSClient(config *AWSConfig) *S3Client {
	region := config.Region
	if region == "" {
		region = "us-east-1"
	}
	endpoint, ok := awsEndpoints[region]
	if !ok {
		endpoint = "s3.amazonaws.com"
	}
	return NewS3Client(&S3Config{
		Endpoint:       endpoint,
		BucketName:     config.BucketName,
		AccessKey:      config.AccessKey,
		SecretKey:      config.SecretKey,
		Region:         region,
		ForcePathStyle: false,
	})
}

// IsSupportedAWSRegion reports whether a region has a known endpoint.
func IsSupportedAWSRegion(region string) bool {
	_, ok := awsEndpoints[region]
	return ok
}

// MinIOConfig configures a MinIO (or other self-hosted S3-compatible)
// bucket.
type MinIOConfig struct {
	Endpoint   string // host:port or full URL
	BucketName string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
}

// NewMinIOClient builds a client for MinIO. MinIO requires path-style
// addressing (endpoint/bucket/key).
func NewMinIOClient(config *MinIOConfig) *S3Client {
	endpoint := config.Endpoint
	if !strings.Contains(endpoint, "://") {
		if config.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	return NewS3Client(&S3Config{
		Endpoint:       endpoint,
		BucketName:     config.BucketName,
		AccessKey:      config.AccessKey,
		SecretKey:      config.SecretKey,
		Region:         "us-east-1", // MinIO ignores regions but signing needs one
		ForcePathStyle: true,
	})
}

// R2Config configures a Cloudflare R2 bucket.
type R2Config struct {
	AccountID  string
	BucketName string
	AccessKey  string
	SecretKey  string
}

// NewR2Client builds a client for Cloudflare R2, which speaks the S3
// API on account-scoped endpoints.
func NewR2Client(config *R2Config) (*S3Client, error) {
	if config.AccountID == "" {
		return nil, errors.New(errors.ErrInvalid, "r2 account id is required")
	}
	return NewS3Client(&S3Config{
		Endpoint:       fmt.Sprintf("%s.r2.cloudflarestorage.com", config.AccountID),
		BucketName:     config.BucketName,
		AccessKey:      config.AccessKey,
		SecretKey:      config.SecretKey,
		Region:         "auto",
		ForcePathStyle: false,
	}), nil
}

// FromCredential builds the provider-appropriate client from a stored
// credential row, decrypting its key pair with the machine id.
func FromCredential(cred *models.BackupCredential, machineID string) (*S3Client, error) {
	accessKey, secretKey, err := cred.Keys(machineID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCryptoFailed, "decrypt backup credentials", err)
	}

	switch cred.Provider {
	case ProviderAWS:
		return NewAWSClient(&AWSConfig{
			BucketName: cred.BucketName,
			AccessKey:  accessKey,
			SecretKey:  secretKey,
			Region:     cred.Region,
		}), nil
	case ProviderMinIO:
		return NewMinIOClient(&MinIOConfig{
			Endpoint:   cred.Endpoint,
			BucketName: cred.BucketName,
			AccessKey:  accessKey,
			SecretKey:  secretKey,
			UseSSL:     strings.HasPrefix(cred.Endpoint, "https://"),
		}), nil
	case ProviderR2:
		// The endpoint column stores the R2 account id.
		return NewR2Client(&R2Config{
			AccountID:  cred.Endpoint,
			BucketName: cred.BucketName,
			AccessKey:  accessKey,
			SecretKey:  secretKey,
		})
	default:
		return nil, errors.New(errors.ErrInvalid, fmt.Sprintf("unknown backup provider %q", cred.Provider))
	}
}
