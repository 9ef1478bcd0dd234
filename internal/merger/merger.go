package merger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
	"github.com/shilin66/report-merger/internal/reader"
	"github.com/shilin66/report-merger/pkg/docx"
)

// Merger 报告合并器，串联读取、扫描、替换和物化四个阶段
// 每次合并使用独立的模板文档对象，可以被多个请求并发调用
type Merger struct {
	cfg       *config.Config
	converter domain.Converter
	uploader  domain.Uploader
	fetcher   domain.SourceFetcher
}

// Options 单次合并的可选参数，覆盖配置文件中的对应项
type Options struct {
	OutputPath    string // 指定输出路径，为空时自动生成带时间戳的文件名
	TargetDate    string // 目标期间 YYYYMM，为空时取上个月
	NoDateFolder  bool   // 不在输出目录下创建日期子目录
	UploadToMinio *bool  // 覆盖配置中的上传开关
}

// New 创建报告合并器
// converter/uploader/fetcher 为空表示对应能力未启用
func New(cfg *config.Config, converter domain.Converter, uploader domain.Uploader, fetcher domain.SourceFetcher) *Merger {
	return &Merger{cfg: cfg, converter: converter, uploader: uploader, fetcher: fetcher}
}

// Merge 执行一次完整的报告合并
// 模板对象仅在本次合并内使用，替换是原地修改，失败时不产出部分结果
func (m *Merger) Merge(ctx context.Context, opts Options) (*domain.MergeResult, error) {
	doc, err := docx.Open(m.cfg.TemplatePath)
	if err != nil {
		return nil, &domain.TemplateError{Template: m.cfg.TemplatePath, Err: err}
	}

	tokens := doc.Scan()
	log.Printf("模板验证成功: %s，共 %d 处占位符", m.cfg.TemplatePath, len(tokens))

	builtin, targetDate, err := reader.BuiltinVariables(opts.TargetDate, time.Now())
	if err != nil {
		return nil, err
	}

	sourceDir := m.cfg.SourceDir
	if m.cfg.UseMinio && m.fetcher != nil {
		sourceDir, err = m.fetcher.FetchSources(ctx, targetDate)
		if err != nil {
			return nil, err
		}
	}

	mappings, err := reader.ScanSources(m.cfg, sourceDir)
	if err != nil {
		return nil, err
	}

	policy := domain.DuplicatePolicy(m.cfg.DuplicateKeyPolicy)
	values, err := reader.MergeMappings(policy, mappings...)
	if err != nil {
		return nil, err
	}
	// 内置变量只作缺省值：数据源的同名键优先，且不参与冲突检查
	for key, value := range builtin {
		if _, ok := values[key]; !ok {
			values[key] = value
		}
	}

	subResult := doc.Substitute(tokens, values)
	if m.cfg.Verbose {
		log.Print(variableReport(tokens, values))
	}

	result := &domain.MergeResult{
		Matched:      subResult.Matched,
		Unmatched:    subResult.Unmatched,
		Replacements: subResult.Replacements,
	}

	if err := m.materialize(ctx, doc, opts, result); err != nil {
		return result, err
	}

	return result, nil
}

// variableReport 生成变量替换报告文本
func variableReport(tokens []docx.Token, values map[string]string) string {
	templateVars := make(map[string]bool)
	for _, tok := range tokens {
		templateVars[tok.Key] = true
	}

	var matched, missing []string
	for key := range templateVars {
		if _, ok := values[key]; ok {
			matched = append(matched, key)
		} else {
			missing = append(missing, key)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)

	var sb strings.Builder
	sb.WriteString("=== 变量替换报告 ===\n")
	sb.WriteString(fmt.Sprintf("模板中的变量数量: %d\n", len(templateVars)))
	sb.WriteString(fmt.Sprintf("提供的变量数量: %d\n", len(values)))
	sb.WriteString(fmt.Sprintf("成功匹配的变量 (%d):\n", len(matched)))
	for _, v := range matched {
		sb.WriteString("  - " + v + "\n")
	}
	if len(missing) > 0 {
		sb.WriteString(fmt.Sprintf("缺失的变量 (%d):\n", len(missing)))
		for _, v := range missing {
			sb.WriteString("  - " + v + "\n")
		}
	}
	return sb.String()
}
