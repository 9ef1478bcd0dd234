package cmd

import (
	"flag"
	"fmt"
)

// Args 命令行参数
type Args struct {
	ConfigPath   string
	TemplatePath string
	OutputPath   string
	API          bool
	Host         string
	Port         int
	UseMinio     bool
	UploadMinio  bool
	NoUpload     bool
	NoDateFolder bool
	TargetDate   string
	Verbose      bool
	ShowVersion  bool
	ShowHelp     bool
}

// ParseArgs 解析命令行参数
func ParseArgs(arguments []string) (*Args, error) {
	args := &Args{}

	fs := flag.NewFlagSet("report-merger", flag.ContinueOnError)
	fs.StringVar(&args.ConfigPath, "config", "config.json", "配置文件路径")
	fs.StringVar(&args.TemplatePath, "template", "", "模板文件路径（覆盖配置文件）")
	fs.StringVar(&args.OutputPath, "output", "", "输出文件路径（默认按前缀加时间戳生成）")
	fs.BoolVar(&args.API, "api", false, "以API服务模式运行")
	fs.StringVar(&args.Host, "host", "0.0.0.0", "API服务监听地址")
	fs.IntVar(&args.Port, "port", 8080, "API服务监听端口")
	fs.BoolVar(&args.UseMinio, "minio", false, "从Minio拉取源文件")
	fs.BoolVar(&args.UploadMinio, "upload-minio", false, "生成后上传到Minio")
	fs.BoolVar(&args.NoUpload, "no-upload", false, "生成后不上传（覆盖配置文件）")
	fs.BoolVar(&args.NoDateFolder, "no-date-folder", false, "不在输出目录下创建日期子目录")
	fs.StringVar(&args.TargetDate, "target-date", "", "目标期间，YYYYMM格式（默认上个月）")
	fs.BoolVar(&args.Verbose, "verbose", false, "输出详细日志")
	fs.BoolVar(&args.ShowVersion, "version", false, "显示版本信息")
	fs.BoolVar(&args.ShowHelp, "help", false, "显示帮助信息")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "用法: report-merger [选项]\n\n")
		fmt.Fprintf(fs.Output(), "运维报告合并工具：读取Excel/PDF/Word数据源，替换Word模板中的\n")
		fmt.Fprintf(fs.Output(), "{{变量}}占位符并生成汇总报告。\n\n选项:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(arguments); err != nil {
		return nil, err
	}
	if args.ShowHelp {
		fs.Usage()
	}

	if args.UploadMinio && args.NoUpload {
		return nil, fmt.Errorf("-upload-minio 与 -no-upload 不能同时使用")
	}

	return args, nil
}

// uploadOverride 上传开关的三态：nil 表示沿用配置文件
func (a *Args) uploadOverride() *bool {
	if a.UploadMinio {
		v := true
		return &v
	}
	if a.NoUpload {
		v := false
		return &v
	}
	return nil
}
