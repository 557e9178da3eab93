// Package s3up provides client initialization and configuration.
//
// The Client provides a high-level interface for uploading files to Amazon
// S3 and compatible services, with resumable multipart transfers for large
// files, presigned download URLs, and configurable options for performance
// tuning and error handling.
package s3up

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/blobkit/s3up/errors"
	"github.com/blobkit/s3up/internal/s3api"
	"github.com/blobkit/s3up/s3types"
)

// Client represents an S3 upload client with configurable options.
// It provides thread-safe access to upload operations with built-in
// resume support, retry logic, and progress tracking.
type Client struct {
	// s3Client is the underlying AWS SDK S3 client
	s3Client s3api.S3API

	// presigner produces presigned download URLs
	presigner s3api.Presigner

	// config holds the AWS configuration
	config aws.Config

	// clientCfg holds the resolved client-level transfer policy
	clientCfg s3types.ClientConfig

	// mu protects concurrent access to client configuration
	mu sync.RWMutex

	// fs is the filesystem abstraction for file operations
	fs fs.Filesystem
}

// New creates a new upload client with the provided options.
// It loads AWS credentials using the default credential chain
// and applies the specified configuration options.
//
// Example:
//
//	client, err := s3up.New(
//	    s3up.WithRegion("us-west-2"),
//	    s3up.WithPartSize(64*1024*1024),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	// Apply functional options first to check for custom config
	clientCfg := &s3types.ClientConfig{
		Timeout:            0, // No timeout by default
		PartSize:           s3types.DefaultPartSize,
		MultipartThreshold: s3types.DefaultMultipartThreshold,
		MaxAttempts:        s3types.DefaultMaxAttempts,
		URIScheme:          s3types.DefaultURIScheme,
		ForcePathStyle:     false,
	}

	for _, opt := range opts {
		opt(clientCfg)
	}

	// Start with default AWS configuration or use custom config
	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	// Apply region from options if specified, otherwise ensure a region is set
	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1" // AWS default region
	}

	// Create S3 client with options
	var s3Opts []func(*s3.Options)

	// Custom endpoint for S3-compatible services
	if clientCfg.Endpoint != "" {
		endpoint := clientCfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	// Add path style option if needed
	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	// Handle custom HTTP client for timeout
	if clientCfg.Timeout > 0 {
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	s3Client := s3.NewFromConfig(cfg, s3Opts...)

	// Initialize filesystem - use provided one or default to OS filesystem
	var filesystem fs.Filesystem
	if clientCfg.Filesystem != nil {
		filesystem = clientCfg.Filesystem
	} else {
		// Default to OS filesystem rooted at /
		filesystem = billy.NewOSFS("/")
	}

	// Resume records live next to the invocation by default
	if clientCfg.ResumeDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
		clientCfg.ResumeDir = wd
	}

	client := &Client{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		config:    cfg,
		clientCfg: *clientCfg,
		fs:        filesystem,
	}

	return client, nil
}

// NewWithClient creates a new upload client with a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API) *Client {
	return &Client{
		s3Client: s3Client,
		config:   aws.Config{},
		clientCfg: s3types.ClientConfig{
			PartSize:           s3types.DefaultPartSize,
			MultipartThreshold: s3types.DefaultMultipartThreshold,
			MaxAttempts:        s3types.DefaultMaxAttempts,
			URIScheme:          s3types.DefaultURIScheme,
			ResumeDir:          ".",
		},
		fs: billy.NewOSFS("/"), // Default to OS filesystem
	}
}

// SetFilesystem sets the filesystem implementation for the client.
// This is useful for testing or when the filesystem needs to be changed after creation.
func (c *Client) SetFilesystem(filesystem fs.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
}

// SetPresigner sets the presign implementation for the client.
// This is primarily used for testing with mocked presigners.
func (c *Client) SetPresigner(presigner s3api.Presigner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presigner = presigner
}

// SetResumeDir changes the directory where resume records are kept.
func (c *Client) SetResumeDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientCfg.ResumeDir = dir
}

// Close releases any resources held by the client.
// Currently a no-op but included for future extensibility.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Future: close any connection pools, cleanup resources
	return nil
}
