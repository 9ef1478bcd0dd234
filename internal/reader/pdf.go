package reader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
)

// PDFReader 提取 PDF 逐页文本后按标注规则取值
type PDFReader struct {
	rule config.PDFRule
}

// NewPDFReader 创建 PDF 读取器
func NewPDFReader(rule config.PDFRule) *PDFReader {
	return &PDFReader{rule: rule}
}

// Read 读取 PDF 文件
// 每个字段规则是一个带单个捕获组的正则，在全文中取第一处匹配；
// 任何字段无法匹配不算失败，只是该键不产出，缺失会体现在未匹配列表里
func (r *PDFReader) Read(path string) (map[string]string, error) {
	text, err := extractPDFText(path)
	if err != nil {
		return nil, &domain.SourceReadError{Source: path, Err: err}
	}

	values, err := extractFields(text, r.rule.Fields)
	if err != nil {
		return nil, &domain.SourceReadError{Source: path, Err: err}
	}
	return values, nil
}

// extractPDFText 逐页提取 PDF 纯文本
func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开PDF失败: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("提取第 %d 页文本失败: %w", pageIndex, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// extractFields 按字段规则从文本中提取键值
func extractFields(text string, fields map[string]string) (map[string]string, error) {
	values := make(map[string]string)

	for key, pattern := range fields {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("字段 %s 的提取规则无效: %w", key, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("字段 %s 的提取规则缺少捕获组", key)
		}
		if m := re.FindStringSubmatch(text); m != nil {
			values[key] = strings.TrimSpace(m[1])
		}
	}

	return values, nil
}
