// Package backup uploads report archives to S3-compatible object
// storage configured by the user. Uploads are optional and never block
// an export; the archive on local disk is the source of truth.
package backup

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// ObjectStore is the remote archive destination.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// emptyPayloadHash is the SHA-256 of a zero-length body.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// maxErrorBody bounds how much of an error response gets reported.
const maxErrorBody = 2 << 10

// S3Config holds connection settings for one bucket.
type S3Config struct {
	// Endpoint is the service host, with or without a scheme. A bare
	// host defaults to https.
	Endpoint   string
	BucketName string
	AccessKey  string
	SecretKey  string
	Region     string

	// ForcePathStyle addresses objects as endpoint/bucket/key instead
	// of bucket.endpoint/key. MinIO and localstack require it.
	ForcePathStyle bool
}

// S3Client implements ObjectStore over the S3 REST API with AWS
// Signature V4 request signing.
type S3Client struct {
	config     *S3Config
	httpClient *http.Client

	// now is the signing clock; tests pin it.
	now func() time.Time
}

// ListBucketResult is the ListObjectsV2 response envelope.
type ListBucketResult struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	Name     string   `xml:"Name"`
	Prefix   string   `xml:"Prefix"`
	Contents []struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		Size         int64  `xml:"Size"`
	} `xml:"Contents"`
}

// NewS3Client builds a client for one bucket.
func NewS3Client(config *S3Config) *S3Client {
	return &S3Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		now: time.Now,
	}
}

// Upload stores data under key.
func (c *S3Client) Upload(ctx context.Context, key string, data []byte) error {
	req, err := c.newRequest(ctx, http.MethodPut, key, nil, data)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError("upload", resp)
	}
	return nil
}

// Download fetches the object stored under key.
func (c *S3Client) Download(ctx context.Context, key string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, key, nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError("download", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

// Delete removes the object stored under key. Deleting a missing key
// succeeds.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, key, nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return responseError("delete", resp)
	}
	return nil
}

// List returns the keys under a prefix.
func (c *S3Client) List(ctx context.Context, prefix string) ([]string, error) {
	query := url.Values{}
	query.Set("list-type", "2")
	if prefix != "" {
		query.Set("prefix", prefix)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "", query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("list", resp)
	}

	var result ListBucketResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse list response: %w", err)
	}

	keys := make([]string, 0, len(result.Contents))
	for _, object := range result.Contents {
		keys = append(keys, object.Key)
	}
	return keys, nil
}

// TestConnection verifies the credentials and bucket by listing it.
func (c *S3Client) TestConnection(ctx context.Context) error {
	_, err := c.List(ctx, "")
	return err
}

// newRequest builds and signs one request. An empty key addresses the
// bucket itself (list operations).
func (c *S3Client) newRequest(ctx context.Context, method, key string, query url.Values, body []byte) (*http.Request, error) {
	target, err := c.objectURL(key)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}

	payloadHash := emptyPayloadHash
	if len(body) > 0 {
		payloadHash = hex.EncodeToString(hashSHA256(body))
	}
	c.sign(req, payloadHash)
	return req, nil
}

// objectURL resolves the endpoint, bucket, and key into a URL using
// the configured addressing style.
func (c *S3Client) objectURL(key string) (*url.URL, error) {
	endpoint := c.config.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", c.config.Endpoint, err)
	}

	if c.config.ForcePathStyle {
		u.Path = path.Join(u.Path, c.config.BucketName, key)
	} else {
		u.Host = c.config.BucketName + "." + u.Host
		u.Path = "/" + key
	}
	return u, nil
}

// sign adds AWS Signature V4 headers. The payload hash is signed, so
// a tampered body fails server-side verification.
func (c *S3Client) sign(req *http.Request, payloadHash string) {
	now := c.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	canonicalHeaders := "host:" + host + "\n" +
		"x-amz-content-sha256:" + payloadHash + "\n" +
		"x-amz-date:" + amzDate + "\n"
	signedHeaders := "host;x-amz-content-sha256;x-amz-date"

	canonicalRequest := strings.Join([]string{
		req.Method,
		req.URL.EscapedPath(),
		req.URL.Query().Encode(),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := dateStamp + "/" + c.config.Region + "/s3/aws4_request"
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(hashSHA256([]byte(canonicalRequest))),
	}, "\n")

	kDate := hmacSHA256([]byte("AWS4"+c.config.SecretKey), dateStamp)
	kRegion := hmacSHA256(kDate, c.config.Region)
	kService := hmacSHA256(kRegion, "s3")
	kSigning := hmacSHA256(kService, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		c.config.AccessKey, scope, signedHeaders, signature))
}

func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func hashSHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
