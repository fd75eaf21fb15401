// Package oss publishes finished videos to Alibaba Cloud OSS.
package oss

import (
	"context"
	"fmt"
	"os"
	"path"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
	"strings"
	"time"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
	"go.uber.org/zap"
)

// LinkExpiry is the lifetime of the presigned download link.
const LinkExpiry = 7 * 24 * time.Hour

type objectAPI interface {
	PutObjectFromFile(ctx context.Context, request *oss.PutObjectRequest, filePath string, optFns ...func(*oss.Options)) (*oss.PutObjectResult, error)
	Presign(ctx context.Context, request any, optFns ...func(*oss.PresignOptions)) (*oss.PresignResult, error)
}

type Uploader struct {
	api    objectAPI
	bucket string
	prefix string
}

type Options struct {
	AccessKeyId     string
	AccessKeySecret string
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
}

func NewUploader(opts Options) *Uploader {
	cfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyId, opts.AccessKeySecret)).
		WithRegion(opts.Region)
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint)
	}
	return &Uploader{
		api:    oss.NewClient(cfg),
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}
}

// ObjectKey joins the configured prefix and key.
func (u *Uploader) ObjectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if u.prefix == "" {
		return key
	}
	return path.Join(u.prefix, key)
}

// Upload stores localPath under key and returns a presigned download URL.
func (u *Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", apperrors.Wrap(apperrors.CodeFileNotFound, "upload source", err)
	}
	objectKey := u.ObjectKey(key)

	_, err := u.api.PutObjectFromFile(ctx, &oss.PutObjectRequest{
		Bucket: oss.Ptr(u.bucket),
		Key:    oss.Ptr(objectKey),
	}, localPath)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadFailed, fmt.Sprintf("put object %s", objectKey), err)
	}

	signed, err := u.api.Presign(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(u.bucket),
		Key:    oss.Ptr(objectKey),
	}, oss.PresignExpires(LinkExpiry))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadFailed, "presign object url", err)
	}

	log.GetLogger().Info("video uploaded", zap.String("bucket", u.bucket), zap.String("key", objectKey))
	return signed.URL, nil
}
