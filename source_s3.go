package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"path-style"`
}

type S3Source struct {
	client   *s3.Client
	bucket   string
	prefix   string
	location string
}

func parseS3Location(location string) (string, string, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("location %v is not an s3 url", location)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("location %v has no bucket", location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func NewS3Source(ctx context.Context, location string, cfg S3Config) (*S3Source, error) {
	bucket, prefix, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	Logger.Debugf("opened s3 source bucket=%v prefix=%v", bucket, prefix)
	return &S3Source{
		client:   s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:   bucket,
		prefix:   prefix,
		location: location,
	}, nil
}

func (s *S3Source) Name() string { return s.location }

func (s *S3Source) key(file string) string {
	if s.prefix == "" {
		return file
	}
	return path.Join(s.prefix, file)
}

func (s *S3Source) Read(ctx context.Context, file string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(file)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, &fs.PathError{Op: "read", Path: s.location + "/" + file, Err: fs.ErrNotExist}
		}
		return nil, fmt.Errorf("failed to get object %v: %w", s.key(file), err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %v: %w", s.key(file), err)
	}
	return decompress(file, data)
}

func (s *S3Source) List(ctx context.Context, dir string) ([]string, error) {
	root := s.prefix
	if dir != "" && dir != "." {
		root = s.key(dir)
	}
	listPrefix := root
	if listPrefix != "" {
		listPrefix += "/"
	}

	files := make([]string, 0)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %v: %w", listPrefix, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			files = append(files, strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/"))
		}
	}
	slices.Sort(files)
	return files, nil
}
