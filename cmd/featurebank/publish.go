package main

import (
	"context"
	"fmt"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	featurebank "github.com/k-tonal/featurebank"
	"github.com/k-tonal/featurebank/blobstore"
	miniostore "github.com/k-tonal/featurebank/blobstore/minio"
	s3store "github.com/k-tonal/featurebank/blobstore/s3"
)

func newPublishCmd() *cobra.Command {
	var (
		configPath string
		backend    string
		path       string
		endpoint   string
		bucket     string
		prefix     string
		region     string
		insecure   bool
		name       string
		fetch      bool
	)

	cmd := &cobra.Command{
		Use:   "publish <bank file>",
		Short: "Upload a finished bank to a blobstore (or fetch one back)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			pc := cfg.Publish
			flagSet := cmd.Flags().Changed
			if flagSet("backend") {
				pc.Backend = backend
			}
			if flagSet("path") {
				pc.Path = path
			}
			if flagSet("endpoint") {
				pc.Endpoint = endpoint
			}
			if flagSet("bucket") {
				pc.Bucket = bucket
			}
			if flagSet("prefix") {
				pc.Prefix = prefix
			}
			if flagSet("region") {
				pc.Region = region
			}
			if flagSet("insecure") {
				pc.Insecure = insecure
			}

			bs, err := openBlobStore(cmd.Context(), pc)
			if err != nil {
				return err
			}

			bankPath := args[0]
			if name == "" {
				name = filepath.Base(bankPath)
			}

			if fetch {
				if err := featurebank.Fetch(cmd.Context(), bs, name, bankPath); err != nil {
					return err
				}
				fmt.Printf("fetched %s to %s\n", name, bankPath)
				return nil
			}

			if err := featurebank.Publish(cmd.Context(), bs, name, bankPath); err != nil {
				return err
			}
			fmt.Printf("published %s as %s\n", bankPath, name)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.StringVar(&backend, "backend", "local", "blobstore backend: local, minio or s3")
	f.StringVar(&path, "path", "", "target directory of the local backend")
	f.StringVar(&endpoint, "endpoint", "", "minio endpoint host:port")
	f.StringVar(&bucket, "bucket", "", "bucket name")
	f.StringVar(&prefix, "prefix", "", "key prefix inside the bucket")
	f.StringVar(&region, "region", "", "s3 region")
	f.BoolVar(&insecure, "insecure", false, "disable TLS for the minio backend")
	f.StringVar(&name, "name", "", "blob name (default: bank file base name)")
	f.BoolVar(&fetch, "fetch", false, "download instead of upload")

	return cmd
}

func openBlobStore(ctx context.Context, pc PublishConfig) (blobstore.BlobStore, error) {
	switch pc.Backend {
	case "", "local":
		if pc.Path == "" {
			return nil, fmt.Errorf("the local backend needs a target path")
		}
		return blobstore.NewLocalStore(pc.Path), nil

	case "minio":
		if pc.Endpoint == "" || pc.Bucket == "" {
			return nil, fmt.Errorf("the minio backend needs an endpoint and a bucket")
		}
		client, err := minio.New(pc.Endpoint, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: !pc.Insecure,
		})
		if err != nil {
			return nil, err
		}
		return miniostore.NewStore(client, pc.Bucket, pc.Prefix), nil

	case "s3":
		if pc.Bucket == "" {
			return nil, fmt.Errorf("the s3 backend needs a bucket")
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if pc.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(pc.Region))
		}
		awscfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		return s3store.NewStore(awss3.NewFromConfig(awscfg), pc.Bucket, pc.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown blobstore backend %q", pc.Backend)
	}
}
