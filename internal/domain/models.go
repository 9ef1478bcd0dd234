package domain

import "context"

// SourceReader 源文件读取器接口，把 Excel/PDF/DOCX 源文件解析为变量映射
type SourceReader interface {
	Read(path string) (map[string]string, error)
}

// Converter 文档转换服务接口（LibreOffice 转换服务的客户端抽象）
type Converter interface {
	Convert(ctx context.Context, docxPath string) ([]byte, error)
}

// Uploader 对象存储上传器接口
type Uploader interface {
	Upload(ctx context.Context, localPath, remoteDir string) (string, error)
}

// SourceFetcher 远端源文件拉取器接口，把对象存储中的源文件
// 下载到本地目录后交给常规扫描
type SourceFetcher interface {
	FetchSources(ctx context.Context, targetDate string) (string, error)
}

// MergeResult 合并结果
type MergeResult struct {
	OutputPath   string   // 生成的 DOCX 文件路径
	PDFPath      string   // 转换生成的 PDF 路径（未开启转换时为空）
	UploadURL    string   // 上传后的访问地址（未开启上传时为空）
	Matched      []string // 成功替换的变量名（按文档顺序）
	Unmatched    []string // 模板中存在但映射缺失的变量名
	Replacements int      // 替换次数
}

// DuplicatePolicy 变量映射重复键的处理策略
type DuplicatePolicy string

const (
	// DuplicateOverride 后写覆盖先写
	DuplicateOverride DuplicatePolicy = "override"
	// DuplicateError 重复键视为配置错误
	DuplicateError DuplicatePolicy = "error"
)

// Valid 检查策略取值是否合法
func (p DuplicatePolicy) Valid() bool {
	return p == DuplicateOverride || p == DuplicateError
}
