package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shilin66/report-merger/internal/domain"
)

// MinioConfig Minio 对象存储连接配置
type MinioConfig struct {
	Endpoint   string `json:"endpoint"`
	AccessKey  string `json:"access_key"`
	SecretKey  string `json:"secret_key"`
	Secure     bool   `json:"secure"`
	BucketName string `json:"bucket_name"`
	BasePrefix string `json:"base_prefix"`
}

// OutputConfig 输出文件配置
type OutputConfig struct {
	BaseDirectory    string `json:"base_directory"`
	FilenamePrefix   string `json:"filename_prefix"`
	CreateDateFolder bool   `json:"create_date_folder"`
	UploadToMinio    bool   `json:"upload_to_minio"`
	MinioUploadPath  string `json:"minio_upload_path"`
}

// ConvertConfig 外部文档转换服务配置
type ConvertConfig struct {
	Enabled        bool   `json:"enabled"`
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ExcelRule Excel 源文件的取值规则
// KV 模式按键列/值列逐行取键值；Flatten 模式把数据区按
// row{i}_col{表头} 的命名展开为变量
type ExcelRule struct {
	FileMatch   string `json:"file_match"`
	Sheet       string `json:"sheet"`
	Mode        string `json:"mode"` // kv 或 flatten
	KeyColumn   int    `json:"key_column"`
	ValueColumn int    `json:"value_column"`
	HeaderRows  int    `json:"header_rows"`
	Prefix      string `json:"prefix"`
}

// PDFRule PDF 源文件的取值规则，每个字段用带一个捕获组的正则提取
type PDFRule struct {
	FileMatch string            `json:"file_match"`
	Fields    map[string]string `json:"fields"`
}

// DocxRule DOCX 源文件的取值规则，整篇文本作为一个变量的值
type DocxRule struct {
	FileMatch string `json:"file_match"`
	Key       string `json:"key"`
}

// Config 完整配置
type Config struct {
	TemplatePath       string        `json:"template_path"`
	SourceDir          string        `json:"source_dir"`
	UseMinio           bool          `json:"use_minio"`
	TempDir            string        `json:"temp_dir"`
	Output             OutputConfig  `json:"output"`
	Minio              MinioConfig   `json:"minio"`
	Convert            ConvertConfig `json:"convert"`
	DuplicateKeyPolicy string        `json:"duplicate_key_policy"`
	ExcelSources       []ExcelRule   `json:"excel_sources"`
	PDFSources         []PDFRule     `json:"pdf_sources"`
	DocxSources        []DocxRule    `json:"docx_sources"`
	Verbose            bool          `json:"verbose"`
}

// DefaultConfig 默认配置，与配置文件缺省值保持一致
func DefaultConfig() *Config {
	return &Config{
		TemplatePath: "template.docx",
		SourceDir:    "核心网络部运维报告",
		TempDir:      "./tmp/minio_files",
		Output: OutputConfig{
			BaseDirectory:    "核心网络部运维报告",
			FilenamePrefix:   "核心网络部运维报告汇总",
			CreateDateFolder: true,
			UploadToMinio:    false,
			MinioUploadPath:  "核心网络部运维报告/输出",
		},
		Minio: MinioConfig{
			Endpoint:   "localhost:9000",
			Secure:     false,
			BucketName: "report",
			BasePrefix: "核心网络部运维报告",
		},
		Convert: ConvertConfig{
			Enabled:        false,
			URL:            "http://127.0.0.1:7434/v2/convert/file",
			TimeoutSeconds: 60,
		},
		DuplicateKeyPolicy: string(domain.DuplicateOverride),
	}
}

// LoadConfig 加载配置文件，文件不存在时写出默认配置
// 环境变量优先级高于文件
func LoadConfig(filePath string) (*Config, error) {
	cfg := DefaultConfig()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
			if err := SaveConfig(filePath, cfg); err != nil {
				return nil, fmt.Errorf("创建默认配置文件失败: %w", err)
			}
		} else {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(filePath string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// applyEnvOverrides 从环境变量覆盖配置
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_SECURE"); v != "" {
		cfg.Minio.Secure = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MINIO_BUCKET_NAME"); v != "" {
		cfg.Minio.BucketName = v
	}
	if v := os.Getenv("CONVERT_API_URL"); v != "" {
		cfg.Convert.URL = v
	}
	if v := os.Getenv("CONVERT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Convert.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("OUTPUT_BASE_DIR"); v != "" {
		cfg.Output.BaseDirectory = v
	}
	if v := os.Getenv("SOURCE_BASE_PATH"); v != "" {
		cfg.SourceDir = v
	}
	if v := os.Getenv("TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}
}

// Validate 验证配置的有效性
func Validate(cfg *Config) error {
	if cfg == nil {
		return &domain.ConfigurationError{Field: "config", Reason: "配置不能为空"}
	}
	if cfg.TemplatePath == "" {
		return &domain.ConfigurationError{Field: "template_path", Reason: "模板文件路径不能为空"}
	}
	if !domain.DuplicatePolicy(cfg.DuplicateKeyPolicy).Valid() {
		return &domain.ConfigurationError{
			Field:  "duplicate_key_policy",
			Reason: fmt.Sprintf("取值必须为 override 或 error，当前为 %q", cfg.DuplicateKeyPolicy),
		}
	}
	for i, rule := range cfg.ExcelSources {
		if rule.Mode != "" && rule.Mode != "kv" && rule.Mode != "flatten" {
			return &domain.ConfigurationError{
				Field:  fmt.Sprintf("excel_sources[%d].mode", i),
				Reason: fmt.Sprintf("取值必须为 kv 或 flatten，当前为 %q", rule.Mode),
			}
		}
	}
	return nil
}

// ValidateMinio 验证 Minio 配置是否完整，使用 Minio 模式时必须通过
func ValidateMinio(cfg *Config) error {
	if cfg.Minio.Endpoint == "" {
		return &domain.ConfigurationError{Field: "minio.endpoint", Reason: "不能为空"}
	}
	if cfg.Minio.AccessKey == "" {
		return &domain.ConfigurationError{Field: "minio.access_key", Reason: "不能为空"}
	}
	if cfg.Minio.SecretKey == "" {
		return &domain.ConfigurationError{Field: "minio.secret_key", Reason: "不能为空"}
	}
	if cfg.Minio.BucketName == "" {
		return &domain.ConfigurationError{Field: "minio.bucket_name", Reason: "不能为空"}
	}
	return nil
}
