package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blobkit/s3up"
	"github.com/blobkit/s3up/errors"
)

var (
	flagKey           string
	flagResumeDir     string
	flagPresignExpiry time.Duration
	flagNoPresign     bool
	flagVerbose       bool
)

func main() {
	root := &cobra.Command{
		Use:   "s3up <file> [key]",
		Short: "Upload files to S3-compatible storage with resume support",
		Long: `s3up uploads a local file to an S3-compatible object store.

Files above 100MB are transferred as a resumable multipart upload: if the
transfer is interrupted, running the same command again continues from the
last acknowledged part instead of starting over.

Configuration comes from the environment (or a .env file):
  S3UP_ENDPOINT     storage endpoint, e.g. s3.example.com
  S3UP_ACCESS_KEY   access key ID
  S3UP_SECRET_KEY   secret access key
  S3UP_BUCKET       target bucket
  S3UP_REGION       region (default us-east-1)
  S3UP_USE_HTTPS    "true" or "false" (default true)`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().StringVarP(&flagKey, "key", "k", "", "object key (default: file base name)")
	root.Flags().StringVar(&flagResumeDir, "resume-dir", "", "directory for resume records (default: working directory)")
	root.Flags().DurationVar(&flagPresignExpiry, "presign-expiry", time.Hour, "validity of the printed download URL")
	root.Flags().BoolVar(&flagNoPresign, "no-presign", false, "skip printing a presigned download URL")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(flagVerbose)
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := args[0]
	key := flagKey
	if len(args) > 1 {
		key = args[1]
	}
	if key == "" {
		key = filepath.Base(path)
	}

	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		),
	}

	client, err := s3up.New(
		s3up.WithAWSConfig(&awsCfg),
		s3up.WithEndpoint(cfg.EndpointURL()),
		s3up.WithForcePathStyle(true),
		s3up.WithResumeDir(flagResumeDir),
	)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	log.Debug().
		Str("endpoint", cfg.EndpointURL()).
		Str("bucket", cfg.Bucket).
		Str("key", key).
		Msg("starting upload")

	result, err := client.UploadFile(ctx, cfg.Bucket, key, path,
		s3up.WithProgress(newConsoleProgress(filepath.Base(path))),
	)
	if err != nil {
		return describeUploadError(err)
	}

	log.Info().
		Str("location", result.Location).
		Str("size", humanize.IBytes(uint64(result.Size))).
		Dur("took", result.Duration).
		Bool("resumed", result.Resumed).
		Int32("parts_uploaded", result.PartsUploaded).
		Int32("parts_skipped", result.PartsSkipped).
		Msg("upload complete")

	fmt.Println(result.Location)

	if !flagNoPresign {
		if ok, err := client.Exists(ctx, cfg.Bucket, key); err != nil || !ok {
			log.Warn().Err(err).Msg("uploaded object not visible; skipping presigned URL")
			return nil
		}
		url, err := client.PresignDownload(ctx, cfg.Bucket, key, flagPresignExpiry)
		if err != nil {
			log.Warn().Err(err).Msg("could not generate presigned URL")
		} else {
			fmt.Println(url)
		}
	}

	return nil
}

// newLogger builds a console logger for interactive use.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// describeUploadError translates the failure taxonomy into operator guidance.
func describeUploadError(err error) error {
	switch {
	case errors.IsFileNotFound(err):
		return fmt.Errorf("%w (check the file path)", err)
	case errors.IsSessionNotFound(err):
		return fmt.Errorf(
			"%w\nthe remote session expired; delete the resume record to start over", err)
	case errors.IsResumeCorrupt(err):
		return fmt.Errorf(
			"%w\nthe resume record is unreadable; delete it to start over", err)
	case errors.IsResumeMismatch(err):
		return fmt.Errorf(
			"%w\nthe resume record was written with different settings; rerun with the original part size or delete it to start over", err)
	case errors.IsPartUpload(err):
		return fmt.Errorf(
			"%w\nuploaded parts were kept; run the same command again to resume", err)
	case errors.IsCompleteFailed(err):
		return fmt.Errorf(
			"%w\nall parts are uploaded; run the same command again to retry completion", err)
	default:
		return err
	}
}
