package reader

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
)

// ExcelReader 按配置规则把 Excel 工作簿读取为变量映射
type ExcelReader struct {
	rule config.ExcelRule
}

// NewExcelReader 创建 Excel 读取器
func NewExcelReader(rule config.ExcelRule) *ExcelReader {
	return &ExcelReader{rule: rule}
}

// Read 读取工作簿
// kv 模式按键列/值列逐行取键值；flatten 模式把数据区展开为
// row{i}_col{表头} 形式的变量。工作表缺失或文件不可读视为源文件错误，
// 结构不匹配不会自动重试
func (r *ExcelReader) Read(path string) (map[string]string, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &domain.SourceReadError{Source: path, Err: err}
	}
	defer file.Close()

	sheet := r.rule.Sheet
	if sheet == "" {
		sheet = file.GetSheetName(0)
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, &domain.SourceReadError{Source: path, Err: fmt.Errorf("读取工作表 %q 失败: %w", sheet, err)}
	}

	switch r.rule.Mode {
	case "", "kv":
		return r.readKeyValue(path, rows)
	case "flatten":
		return r.readFlatten(path, rows)
	default:
		return nil, &domain.SourceReadError{Source: path, Err: fmt.Errorf("不支持的读取模式: %s", r.rule.Mode)}
	}
}

// readKeyValue 键值模式：每行取键列和值列
func (r *ExcelReader) readKeyValue(path string, rows [][]string) (map[string]string, error) {
	keyCol := r.rule.KeyColumn
	valCol := r.rule.ValueColumn
	if valCol == 0 && keyCol == 0 {
		valCol = 1
	}

	values := make(map[string]string)
	for i, row := range rows {
		if i < r.rule.HeaderRows {
			continue
		}
		if keyCol >= len(row) {
			continue
		}
		key := strings.TrimSpace(row[keyCol])
		if key == "" {
			continue
		}
		value := ""
		if valCol < len(row) {
			value = strings.TrimSpace(row[valCol])
		}
		values[r.rule.Prefix+key] = value
	}

	if len(values) == 0 {
		return nil, &domain.SourceReadError{Source: path, Err: fmt.Errorf("工作表中没有符合键值布局的数据")}
	}
	return values, nil
}

// readFlatten 展开模式：表头行之后的数据区按 row{i}_col{表头} 命名
func (r *ExcelReader) readFlatten(path string, rows [][]string) (map[string]string, error) {
	headerRows := r.rule.HeaderRows
	if headerRows == 0 {
		headerRows = 1
	}
	if len(rows) < headerRows {
		return nil, &domain.SourceReadError{Source: path, Err: fmt.Errorf("工作表行数不足，缺少表头")}
	}

	header := rows[headerRows-1]
	names := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("c%d", i+1)
		}
		names[i] = sanitizeKey(name)
	}

	values := make(map[string]string)
	for i, row := range rows[headerRows:] {
		for j, cell := range row {
			if j >= len(names) {
				break
			}
			key := fmt.Sprintf("%srow%d_col%s", r.rule.Prefix, i+1, names[j])
			values[key] = strings.TrimSpace(cell)
		}
	}

	if len(values) == 0 {
		return nil, &domain.SourceReadError{Source: path, Err: fmt.Errorf("数据区为空")}
	}
	return values, nil
}

// sanitizeKey 把表头文本规整为占位符可用的键名
// 占位符标识符只接受字母、数字和下划线，空格和连字符转为下划线，
// 其余标点直接丢弃，避免产出模板永远引用不到的键
func sanitizeKey(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '_', unicode.IsLetter(r), unicode.IsNumber(r):
			sb.WriteRune(r)
		case r == ' ' || r == '-':
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
