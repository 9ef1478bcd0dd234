package domain

import "fmt"

// SourceReadError 源文件无法打开或不符合预期布局
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("读取源文件失败 %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// TemplateError 模板文件缺失或结构不可读
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("模板文件错误 %s: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// DuplicateKeyError 多个数据源产生了冲突的变量键
type DuplicateKeyError struct {
	Key      string
	OldValue string
	NewValue string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("变量键冲突 %q: %q 与 %q", e.Key, e.OldValue, e.NewValue)
}

// ConversionError 外部文档转换服务不可用或返回失败
type ConversionError struct {
	Input string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("文档转换失败 %s: %v", e.Input, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// UploadError 对象存储传输或鉴权失败
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("上传失败 %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ConfigurationError 缺少必需的配置项
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("配置错误 %s: %s", e.Field, e.Reason)
}
