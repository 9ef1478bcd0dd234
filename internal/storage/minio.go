package storage

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
)

// MinioUploader Minio 文件上传器
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// NewMinioUploader 创建 Minio 上传器
func NewMinioUploader(cfg config.MinioConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, &domain.UploadError{Path: cfg.Endpoint, Err: fmt.Errorf("初始化Minio客户端失败: %w", err)}
	}

	return &MinioUploader{client: client, bucket: cfg.BucketName}, nil
}

// Upload 按日期结构上传文件，返回 minio:// 形式的对象路径
// 对象路径为 remoteDir/日期/文件名
func (u *MinioUploader) Upload(ctx context.Context, localPath, remoteDir string) (string, error) {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return "", &domain.UploadError{Path: localPath, Err: fmt.Errorf("检查存储桶失败: %w", err)}
	}
	if !exists {
		log.Printf("存储桶 %q 不存在，正在创建", u.bucket)
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", &domain.UploadError{Path: localPath, Err: fmt.Errorf("创建存储桶失败: %w", err)}
		}
	}

	dateStr := time.Now().Format("20060102")
	objectName := fmt.Sprintf("%s/%s/%s", remoteDir, dateStr, filepath.Base(localPath))

	if _, err := u.client.FPutObject(ctx, u.bucket, objectName, localPath, minio.PutObjectOptions{}); err != nil {
		return "", &domain.UploadError{Path: localPath, Err: err}
	}

	log.Printf("文件上传成功: %s -> minio://%s/%s", localPath, u.bucket, objectName)

	// 优先返回可直接下载的预签名地址，生成失败时退回对象路径
	if url, err := u.PresignedURL(ctx, objectName, 7*24*time.Hour); err == nil {
		return url, nil
	}
	return fmt.Sprintf("minio://%s/%s", u.bucket, objectName), nil
}

// PresignedURL 生成对象的预签名下载地址
func (u *MinioUploader) PresignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	url, err := u.client.PresignedGetObject(ctx, u.bucket, objectName, expires, nil)
	if err != nil {
		return "", &domain.UploadError{Path: objectName, Err: fmt.Errorf("生成预签名地址失败: %w", err)}
	}
	return url.String(), nil
}
