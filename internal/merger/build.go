package merger

import (
	"time"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/convert"
	"github.com/shilin66/report-merger/internal/domain"
	"github.com/shilin66/report-merger/internal/storage"
)

// Build 按配置装配合并器
// 转换、上传、远端拉取组件只在对应开关打开时创建，未启用的能力
// 在合并器里表现为 nil 并被跳过
func Build(cfg *config.Config) (*Merger, error) {
	var converter domain.Converter
	if cfg.Convert.Enabled {
		converter = convert.NewClient(cfg.Convert.URL, time.Duration(cfg.Convert.TimeoutSeconds)*time.Second)
	}

	if cfg.UseMinio || cfg.Output.UploadToMinio {
		if err := config.ValidateMinio(cfg); err != nil {
			return nil, err
		}
	}

	// 上传开关可能被命令行参数或请求体在运行期打开，
	// 只要Minio配置可用就装配上传器
	var uploader domain.Uploader
	if cfg.Output.UploadToMinio || config.ValidateMinio(cfg) == nil {
		u, err := storage.NewMinioUploader(cfg.Minio)
		if err != nil {
			return nil, err
		}
		uploader = u
	}

	var fetcher domain.SourceFetcher
	if cfg.UseMinio {
		f, err := storage.NewMinioFileScanner(cfg.Minio, cfg.TempDir)
		if err != nil {
			return nil, err
		}
		fetcher = f
	}

	return New(cfg, converter, uploader, fetcher), nil
}
