package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
)

// MinioFileScanner 从 Minio 拉取源文件到本地临时目录
// 对象布局为 <base_prefix>/<期间YYYYMM>/<子目录>/<文件>，与本地
// 源目录的结构一致，下载后交给常规的目录扫描处理
type MinioFileScanner struct {
	client     *minio.Client
	bucket     string
	basePrefix string
	tempDir    string
}

// NewMinioFileScanner 创建 Minio 源文件扫描器
func NewMinioFileScanner(cfg config.MinioConfig, tempDir string) (*MinioFileScanner, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, &domain.SourceReadError{Source: cfg.Endpoint, Err: fmt.Errorf("初始化Minio客户端失败: %w", err)}
	}

	return &MinioFileScanner{
		client:     client,
		bucket:     cfg.BucketName,
		basePrefix: strings.TrimSuffix(cfg.BasePrefix, "/"),
		tempDir:    tempDir,
	}, nil
}

// FetchSources 下载目标期间的所有源文件，返回本地目录
func (s *MinioFileScanner) FetchSources(ctx context.Context, targetDate string) (string, error) {
	prefix := s.basePrefix + "/"
	if targetDate != "" {
		prefix = fmt.Sprintf("%s/%s/", s.basePrefix, targetDate)
	}

	localDir := filepath.Join(s.tempDir, targetDate)
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return "", &domain.SourceReadError{Source: localDir, Err: fmt.Errorf("创建临时目录失败: %w", err)}
	}

	count := 0
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return "", &domain.SourceReadError{Source: prefix, Err: fmt.Errorf("列举对象失败: %w", object.Err)}
		}

		name := filepath.Base(object.Key)
		if strings.HasPrefix(name, "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".xlsx", ".pdf", ".docx":
		default:
			continue
		}

		relPath := strings.TrimPrefix(object.Key, prefix)
		localPath := filepath.Join(localDir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
			return "", &domain.SourceReadError{Source: localPath, Err: fmt.Errorf("创建临时目录失败: %w", err)}
		}
		if err := s.client.FGetObject(ctx, s.bucket, object.Key, localPath, minio.GetObjectOptions{}); err != nil {
			return "", &domain.SourceReadError{Source: object.Key, Err: fmt.Errorf("下载对象失败: %w", err)}
		}
		count++
	}

	log.Printf("从Minio下载了 %d 个源文件到 %s", count, localDir)
	return localDir, nil
}
