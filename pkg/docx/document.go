package docx

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// headerFooterPattern 页眉页脚部件名
var headerFooterPattern = regexp.MustCompile(`^word/(header|footer)\d*\.xml$`)

// Document 一个打开的 DOCX 模板
// 所有 ZIP 条目原样保留在内存中，只有被替换命中的 XML 部件会被改写，
// 其余条目在保存时逐字节复制
type Document struct {
	path    string
	entries []docEntry
	parts   []*Part
}

type docEntry struct {
	header zip.FileHeader
	data   []byte
}

// Open 打开 DOCX 文件并索引可合并的部件（正文、页眉、页脚）
func Open(path string) (*Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("打开DOCX文件失败: %w", err)
	}
	defer reader.Close()

	doc := &Document{path: path}

	hasBody := false
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("打开条目 %s 失败: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("读取条目 %s 失败: %w", file.Name, err)
		}

		doc.entries = append(doc.entries, docEntry{header: file.FileHeader, data: data})

		if file.Name == "word/document.xml" || headerFooterPattern.MatchString(file.Name) {
			part := parsePart(file.Name, string(data))
			part.entryIndex = len(doc.entries) - 1
			doc.parts = append(doc.parts, part)
			if file.Name == "word/document.xml" {
				hasBody = true
			}
		}
	}

	if !hasBody {
		return nil, fmt.Errorf("未找到word/document.xml，文件不是有效的DOCX文档")
	}

	// 正文在前，页眉页脚按名称排序，保证扫描顺序确定
	sort.SliceStable(doc.parts, func(i, j int) bool {
		if doc.parts[i].Name == "word/document.xml" {
			return doc.parts[j].Name != "word/document.xml"
		}
		if doc.parts[j].Name == "word/document.xml" {
			return false
		}
		return doc.parts[i].Name < doc.parts[j].Name
	})

	return doc, nil
}

// Path 返回模板文件路径
func (d *Document) Path() string {
	return d.path
}

// Parts 返回按文档顺序排列的可合并部件
func (d *Document) Parts() []*Part {
	return d.parts
}

// SaveTo 把文档写出到指定路径，未修改的条目保持逐字节不变
func (d *Document) SaveTo(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	outputFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	defer outputFile.Close()

	zipWriter := zip.NewWriter(outputFile)
	defer zipWriter.Close()

	modified := make(map[int]*Part)
	for _, part := range d.parts {
		if part.modified {
			modified[part.entryIndex] = part
		}
	}

	for i := range d.entries {
		entry := &d.entries[i]
		data := entry.data
		if part, ok := modified[i]; ok {
			data = []byte(part.XML)
		}

		header := entry.header
		writer, err := zipWriter.CreateHeader(&header)
		if err != nil {
			return fmt.Errorf("创建ZIP条目 %s 失败: %w", entry.header.Name, err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("写入ZIP条目 %s 失败: %w", entry.header.Name, err)
		}
	}

	return nil
}

// ExtractText 提取文档的纯文本内容，段落之间以换行分隔（调试用）
func (d *Document) ExtractText() string {
	var parts []string
	for _, part := range d.parts {
		for _, para := range part.Paragraphs {
			if para.Text != "" {
				parts = append(parts, para.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}
