package merger

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
	"github.com/shilin66/report-merger/pkg/docx"
)

// writeTemplate 构造正文为单段落的 DOCX 模板
func writeTemplate(t *testing.T, text string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "template.docx")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`+
		`<w:body><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:body></w:document>`, text)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// writeSourceWorkbook 构造键值布局的 Excel 源文件
func writeSourceWorkbook(t *testing.T, path string, pairs map[string]string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	row := 1
	for key, value := range pairs {
		require.NoError(t, f.SetCellValue("Sheet1", fmt.Sprintf("A%d", row), key))
		require.NoError(t, f.SetCellValue("Sheet1", fmt.Sprintf("B%d", row), value))
		row++
	}
	require.NoError(t, f.SaveAs(path))
}

func testConfig(t *testing.T, templateText string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.TemplatePath = writeTemplate(t, templateText)
	cfg.SourceDir = t.TempDir()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Output.FilenamePrefix = "汇总报告"
	cfg.Output.CreateDateFolder = false
	cfg.Output.UploadToMinio = false
	cfg.Convert.Enabled = false
	cfg.ExcelSources = []config.ExcelRule{{
		FileMatch:   "数据",
		Mode:        "kv",
		ValueColumn: 1,
	}}
	return cfg
}

type stubConverter struct {
	data []byte
	err  error
}

func (c *stubConverter) Convert(ctx context.Context, docxPath string) ([]byte, error) {
	return c.data, c.err
}

type stubUploader struct {
	url  string
	err  error
	path string
}

func (u *stubUploader) Upload(ctx context.Context, localPath, remoteDir string) (string, error) {
	u.path = localPath
	return u.url, u.err
}

type stubFetcher struct {
	dir        string
	targetDate string
}

func (f *stubFetcher) FetchSources(ctx context.Context, targetDate string) (string, error) {
	f.targetDate = targetDate
	return f.dir, nil
}

func TestMergeEndToEnd(t *testing.T) {
	cfg := testConfig(t, "{{dept}} {{report_date}} {{missing}}")
	writeSourceWorkbook(t, filepath.Join(cfg.SourceDir, "数据.xlsx"), map[string]string{
		"dept": "核心网络部",
	})

	result, err := New(cfg, nil, nil, nil).Merge(context.Background(), Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"dept", "report_date"}, result.Matched)
	assert.Equal(t, []string{"missing"}, result.Unmatched)
	assert.Equal(t, 2, result.Replacements)
	assert.Empty(t, result.PDFPath)
	assert.Empty(t, result.UploadURL)

	// 输出文档中占位符已替换，未匹配的原样保留
	out, err := docx.Open(result.OutputPath)
	require.NoError(t, err)
	text := out.ExtractText()
	assert.Contains(t, text, "核心网络部")
	assert.Contains(t, text, "{{missing}}")
	assert.NotContains(t, text, "{{dept}}")
}

func TestMergeExplicitOutputPath(t *testing.T) {
	cfg := testConfig(t, "{{dept}}")
	writeSourceWorkbook(t, filepath.Join(cfg.SourceDir, "数据.xlsx"), map[string]string{"dept": "部门"})

	outPath := filepath.Join(t.TempDir(), "指定输出.docx")
	result, err := New(cfg, nil, nil, nil).Merge(context.Background(), Options{OutputPath: outPath})
	require.NoError(t, err)
	assert.Equal(t, outPath, result.OutputPath)

	_, err = os.Stat(outPath)
	assert.NoError(t, err)
}

func TestMergeTemplateMissing(t *testing.T) {
	cfg := testConfig(t, "{{dept}}")
	cfg.TemplatePath = filepath.Join(t.TempDir(), "不存在.docx")

	_, err := New(cfg, nil, nil, nil).Merge(context.Background(), Options{})
	var tplErr *domain.TemplateError
	assert.ErrorAs(t, err, &tplErr)
}

func TestMergeDuplicateKeyPolicy(t *testing.T) {
	cfg := testConfig(t, "{{dept}}")
	cfg.DuplicateKeyPolicy = string(domain.DuplicateError)
	writeSourceWorkbook(t, filepath.Join(cfg.SourceDir, "数据A.xlsx"), map[string]string{"dept": "甲"})
	writeSourceWorkbook(t, filepath.Join(cfg.SourceDir, "数据B.xlsx"), map[string]string{"dept": "乙"})

	_, err := New(cfg, nil, nil, nil).Merge(context.Background(), Options{})
	var dupErr *domain.DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "dept", dupErr.Key)
}

func TestMergeWithConverter(t *testing.T) {
	cfg := testConfig(t, "{{report_date}}")
	cfg.Convert.Enabled = true

	conv := &stubConverter{data: []byte("%PDF-1.4 内容")}
	result, err := New(cfg, conv, nil, nil).Merge(context.Background(), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, result.PDFPath)

	data, err := os.ReadFile(result.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, conv.data, data)
}

func TestMergeConverterFailure(t *testing.T) {
	cfg := testConfig(t, "{{report_date}}")
	cfg.Convert.Enabled = true

	conv := &stubConverter{err: &domain.ConversionError{Input: "x", Err: errors.New("服务不可用")}}
	result, err := New(cfg, conv, nil, nil).Merge(context.Background(), Options{})

	var convErr *domain.ConversionError
	require.ErrorAs(t, err, &convErr)
	// 转换失败时 DOCX 已经落盘
	_, statErr := os.Stat(result.OutputPath)
	assert.NoError(t, statErr)
}

func TestMergeUpload(t *testing.T) {
	cfg := testConfig(t, "{{report_date}}")
	cfg.Output.UploadToMinio = true

	up := &stubUploader{url: "minio://report/输出/汇总.docx"}
	result, err := New(cfg, nil, up, nil).Merge(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, up.url, result.UploadURL)
	assert.Equal(t, result.OutputPath, up.path)
}

func TestMergeUploadOverride(t *testing.T) {
	cfg := testConfig(t, "{{report_date}}")
	cfg.Output.UploadToMinio = true

	// 请求级开关关闭上传
	off := false
	up := &stubUploader{url: "minio://report/x"}
	result, err := New(cfg, nil, up, nil).Merge(context.Background(), Options{UploadToMinio: &off})
	require.NoError(t, err)
	assert.Empty(t, result.UploadURL)
	assert.Empty(t, up.path)
}

func TestMergeUploadFailureKeepsLocalFile(t *testing.T) {
	cfg := testConfig(t, "{{report_date}}")
	cfg.Output.UploadToMinio = true

	up := &stubUploader{err: &domain.UploadError{Path: "x", Err: errors.New("网络不可达")}}
	result, err := New(cfg, nil, up, nil).Merge(context.Background(), Options{})

	var upErr *domain.UploadError
	require.ErrorAs(t, err, &upErr)
	_, statErr := os.Stat(result.OutputPath)
	assert.NoError(t, statErr)
}

func TestMergeUploadRequestedWithoutUploader(t *testing.T) {
	cfg := testConfig(t, "{{report_date}}")
	cfg.Output.UploadToMinio = false

	// 请求级开关要求上传而上传器未装配时必须报错，不能静默跳过
	on := true
	result, err := New(cfg, nil, nil, nil).Merge(context.Background(), Options{UploadToMinio: &on})

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	_, statErr := os.Stat(result.OutputPath)
	assert.NoError(t, statErr)
}

func TestBuildWiresUploaderForRuntimeOverride(t *testing.T) {
	cfg := testConfig(t, "{{report_date}}")
	cfg.Output.UploadToMinio = false
	cfg.Minio.AccessKey = "ak"
	cfg.Minio.SecretKey = "sk"

	// 配置未开启上传但Minio配置可用：上传器仍然装配，
	// 运行期的 -upload-minio / upload_to_minio 才能生效
	m, err := Build(cfg)
	require.NoError(t, err)
	assert.NotNil(t, m.uploader)

	// Minio配置不完整时不装配
	cfg.Minio.SecretKey = ""
	m, err = Build(cfg)
	require.NoError(t, err)
	assert.Nil(t, m.uploader)
}

func TestMergeBuiltinsYieldToSources(t *testing.T) {
	cfg := testConfig(t, "{{year}}年{{month}}月")
	cfg.DuplicateKeyPolicy = string(domain.DuplicateError)
	writeSourceWorkbook(t, filepath.Join(cfg.SourceDir, "数据.xlsx"), map[string]string{
		"year": "二〇二五",
	})

	// 数据源提供的内置同名键优先，error 策略下也不算冲突
	result, err := New(cfg, nil, nil, nil).Merge(context.Background(), Options{})
	require.NoError(t, err)

	out, err := docx.Open(result.OutputPath)
	require.NoError(t, err)
	text := out.ExtractText()
	assert.Contains(t, text, "二〇二五年")
	assert.NotContains(t, text, "{{month}}")
}

func TestMergeFetchesRemoteSources(t *testing.T) {
	cfg := testConfig(t, "{{dept}}")
	cfg.UseMinio = true
	cfg.SourceDir = filepath.Join(t.TempDir(), "本地目录不应被使用")

	remoteDir := t.TempDir()
	writeSourceWorkbook(t, filepath.Join(remoteDir, "数据.xlsx"), map[string]string{"dept": "远端部门"})

	fetcher := &stubFetcher{dir: remoteDir}
	result, err := New(cfg, nil, nil, fetcher).Merge(context.Background(), Options{TargetDate: "202512"})
	require.NoError(t, err)
	assert.Equal(t, "202512", fetcher.targetDate)

	out, err := docx.Open(result.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, out.ExtractText(), "远端部门")
}

func TestGenerateOutputPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = "输出"
	cfg.Output.FilenamePrefix = "汇总"
	m := New(cfg, nil, nil, nil)

	now := time.Date(2026, 8, 24, 15, 4, 5, 0, time.Local)

	cfg.Output.CreateDateFolder = true
	assert.Equal(t,
		filepath.Join("输出", "20260824", "汇总_20260824_150405.docx"),
		m.generateOutputPath(Options{}, now))

	assert.Equal(t,
		filepath.Join("输出", "汇总_20260824_150405.docx"),
		m.generateOutputPath(Options{NoDateFolder: true}, now))

	cfg.Output.CreateDateFolder = false
	assert.Equal(t,
		filepath.Join("输出", "汇总_20260824_150405.docx"),
		m.generateOutputPath(Options{}, now))
}
