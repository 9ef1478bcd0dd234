package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/merger"
	"github.com/shilin66/report-merger/internal/server"
)

// Version 程序版本
const Version = "1.0.0"

// Run 程序入口，按参数选择CLI合并或API服务模式
func Run(args *Args) error {
	if args.ShowVersion {
		fmt.Printf("report-merger v%s\n", Version)
		return nil
	}
	if args.ShowHelp {
		return nil
	}

	if args.Verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if args.API {
		return runAPI(args)
	}
	return runMerge(args)
}

// runMerge CLI模式：执行一次合并后退出
func runMerge(args *Args) error {
	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return err
	}
	applyArgs(cfg, args)

	m, err := merger.Build(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := m.Merge(ctx, merger.Options{
		OutputPath:    args.OutputPath,
		TargetDate:    args.TargetDate,
		NoDateFolder:  args.NoDateFolder,
		UploadToMinio: args.uploadOverride(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("报告生成成功: %s\n", result.OutputPath)
	if result.PDFPath != "" {
		fmt.Printf("PDF文件: %s\n", result.PDFPath)
	}
	if result.UploadURL != "" {
		fmt.Printf("上传地址: %s\n", result.UploadURL)
	}
	return nil
}

// runAPI API服务模式：阻塞运行直到收到退出信号
func runAPI(args *Args) error {
	// 启动前验证一次配置，配置文件不存在时顺带写出默认配置
	if _, err := config.LoadConfig(args.ConfigPath); err != nil {
		return err
	}

	srv := server.New(args.Host, args.Port, args.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Print("收到退出信号，正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// applyArgs 命令行参数覆盖配置文件
func applyArgs(cfg *config.Config, args *Args) {
	if args.TemplatePath != "" {
		cfg.TemplatePath = args.TemplatePath
	}
	if args.UseMinio {
		cfg.UseMinio = true
	}
	if args.Verbose {
		cfg.Verbose = true
	}
}
