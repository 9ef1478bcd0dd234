package merger

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shilin66/report-merger/internal/domain"
	"github.com/shilin66/report-merger/pkg/docx"
)

// materialize 物化输出：命名、写盘、可选的 PDF 转换与上传
// 时间戳文件名只做冲突规避，同一秒内的两次合并可能同名；合并由
// 运维人员手工触发，不是高频操作，可以接受
func (m *Merger) materialize(ctx context.Context, doc *docx.Document, opts Options, result *domain.MergeResult) error {
	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = m.generateOutputPath(opts, time.Now())
	}

	if err := doc.SaveTo(outputPath); err != nil {
		return fmt.Errorf("写出文档失败: %w", err)
	}
	result.OutputPath = outputPath
	log.Printf("报告已生成: %s（替换 %d 处，未匹配 %d 个变量）",
		outputPath, result.Replacements, len(result.Unmatched))

	if m.cfg.Convert.Enabled && m.converter != nil {
		pdfData, err := m.converter.Convert(ctx, outputPath)
		if err != nil {
			return err
		}
		pdfPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".pdf"
		if err := os.WriteFile(pdfPath, pdfData, 0644); err != nil {
			return &domain.ConversionError{Input: outputPath, Err: fmt.Errorf("写出PDF失败: %w", err)}
		}
		result.PDFPath = pdfPath
		log.Printf("PDF已生成: %s", pdfPath)
	}

	upload := m.cfg.Output.UploadToMinio
	if opts.UploadToMinio != nil {
		upload = *opts.UploadToMinio
	}
	if upload {
		if m.uploader == nil {
			return &domain.ConfigurationError{Field: "minio", Reason: "请求上传但Minio未配置"}
		}
		url, err := m.uploader.Upload(ctx, outputPath, m.cfg.Output.MinioUploadPath)
		if err != nil {
			// 上传失败不丢弃已生成的本地文件
			log.Printf("上传失败，报告仍保存在本地: %s", outputPath)
			return err
		}
		result.UploadURL = url
	}

	return nil
}

// generateOutputPath 生成带时间戳的输出路径
// 形如 <base>[/<yyyymmdd>]/<前缀>_20060102_150405.docx
func (m *Merger) generateOutputPath(opts Options, now time.Time) string {
	filename := fmt.Sprintf("%s_%s.docx", m.cfg.Output.FilenamePrefix, now.Format("20060102_150405"))

	dir := m.cfg.Output.BaseDirectory
	if m.cfg.Output.CreateDateFolder && !opts.NoDateFolder {
		dir = filepath.Join(dir, now.Format("20060102"))
	}
	if dir == "" {
		return filename
	}
	return filepath.Join(dir, filename)
}
