package reader

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
)

// MergeMappings 合并多个数据源产出的变量映射
// override 策略后写覆盖先写（与数据源处理顺序一致）；error 策略下
// 出现值不同的重复键即返回 DuplicateKeyError
func MergeMappings(policy domain.DuplicatePolicy, mappings ...map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, m := range mappings {
		for key, value := range m {
			if old, exists := merged[key]; exists && policy == domain.DuplicateError && old != value {
				return nil, &domain.DuplicateKeyError{Key: key, OldValue: old, NewValue: value}
			}
			merged[key] = value
		}
	}
	return merged, nil
}

// BuiltinVariables 内置变量
// report_date 为当天日期；year/month 取目标期间。targetDate 为 YYYYMM
// 格式，为空时默认取上个月。返回值附带生效的目标期间，供远端文件
// 扫描按期间取对象前缀
func BuiltinVariables(targetDate string, now time.Time) (map[string]string, string, error) {
	values := map[string]string{
		"report_date": now.Format("2006年01月02日"),
	}

	targetDate = strings.TrimSpace(targetDate)
	if targetDate == "" {
		lastMonth := now.AddDate(0, 0, -now.Day())
		targetDate = lastMonth.Format("200601")
	} else if _, err := time.Parse("200601", targetDate); err != nil {
		return nil, "", &domain.ConfigurationError{
			Field:  "target_date",
			Reason: fmt.Sprintf("必须为YYYYMM格式，当前为 %q", targetDate),
		}
	}

	values["year"] = targetDate[:4]
	values["month"] = targetDate[4:]
	return values, targetDate, nil
}

// ScanSources 扫描源目录并按规则读取所有源文件
//
// 递归收集 .xlsx/.pdf/.docx 文件（跳过 ~$ 开头的 Word 临时文件），
// 文件名包含规则 file_match 的交给对应读取器。目录不存在不算错误，
// 返回空映射；读取器报错则中止整个扫描
func ScanSources(cfg *config.Config, baseDir string) ([]map[string]string, error) {
	files, err := collectSourceFiles(baseDir)
	if err != nil {
		return nil, err
	}

	var mappings []map[string]string
	for _, path := range files {
		filename := filepath.Base(path)

		var r domain.SourceReader
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			for _, rule := range cfg.ExcelSources {
				if strings.Contains(filename, rule.FileMatch) {
					r = NewExcelReader(rule)
					break
				}
			}
		case ".pdf":
			for _, rule := range cfg.PDFSources {
				if strings.Contains(filename, rule.FileMatch) {
					r = NewPDFReader(rule)
					break
				}
			}
		case ".docx":
			for _, rule := range cfg.DocxSources {
				if strings.Contains(filename, rule.FileMatch) {
					r = NewDocxSourceReader(rule)
					break
				}
			}
		}

		if r == nil {
			if cfg.Verbose {
				log.Printf("跳过没有匹配规则的文件: %s", filename)
			}
			continue
		}

		values, err := r.Read(path)
		if err != nil {
			return nil, err
		}
		if cfg.Verbose {
			log.Printf("读取 %s: %d 个变量", filename, len(values))
		}
		mappings = append(mappings, values)
	}

	return mappings, nil
}

// collectSourceFiles 收集源目录下所有受支持的文件，按路径排序保证处理顺序确定
func collectSourceFiles(baseDir string) ([]string, error) {
	if baseDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		filename := filepath.Base(path)
		if strings.HasPrefix(filename, "~$") {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx", ".pdf", ".docx":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("扫描源目录失败: %w", err)
	}

	return files, nil
}
