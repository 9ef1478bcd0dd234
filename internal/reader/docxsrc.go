package reader

import (
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
)

// wordTextPattern 提取 <w:t> 文本内容
var wordTextPattern = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wordParaClosePattern 段落边界，提取文本时转为换行
var wordParaClosePattern = regexp.MustCompile(`</w:p>`)

// DocxSourceReader 把源 DOCX 的整篇文本作为一个变量的值
type DocxSourceReader struct {
	rule config.DocxRule
}

// NewDocxSourceReader 创建 DOCX 源文件读取器
func NewDocxSourceReader(rule config.DocxRule) *DocxSourceReader {
	return &DocxSourceReader{rule: rule}
}

// Read 读取 DOCX 文件文本
func (r *DocxSourceReader) Read(path string) (map[string]string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, &domain.SourceReadError{Source: path, Err: err}
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	text := extractWordText(content)

	return map[string]string{r.rule.Key: text}, nil
}

// extractWordText 从 document.xml 内容中抽取纯文本，段落间以换行分隔
func extractWordText(content string) string {
	content = wordParaClosePattern.ReplaceAllString(content, "</w:p>\n")

	var sb strings.Builder
	for _, line := range strings.Split(content, "\n") {
		matches := wordTextPattern.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			sb.WriteString(unescapeWordText(m[1]))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// unescapeWordText 还原常见 XML 实体
func unescapeWordText(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return replacer.Replace(s)
}
