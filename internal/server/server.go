package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shilin66/report-merger/internal/config"
	"github.com/shilin66/report-merger/internal/domain"
	"github.com/shilin66/report-merger/internal/merger"
)

// Server HTTP API 模式的服务器
// 每个 /merge 请求独立加载配置并装配一次合并器，请求之间不共享
// 可变状态，坏请求只影响自身
type Server struct {
	configPath string
	httpServer *http.Server
}

// MergeRequest /merge 接口的请求体，字段覆盖配置文件中的对应项
// 指针类型的开关字段缺省时沿用配置文件的取值
type MergeRequest struct {
	TemplatePath  string `json:"template_path,omitempty"`
	OutputPath    string `json:"output_path,omitempty"`
	ConfigPath    string `json:"config_path,omitempty"`
	TargetDate    string `json:"target_date,omitempty"`
	NoDateFolder  bool   `json:"no_date_folder,omitempty"`
	UseMinio      *bool  `json:"use_minio,omitempty"`
	UploadToMinio *bool  `json:"upload_to_minio,omitempty"`
	Verbose       *bool  `json:"verbose,omitempty"`
}

// MergeResponse 统一的响应信封
type MergeResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	OutputFile     string `json:"output_file,omitempty"`
	PDFFile        string `json:"pdf_file,omitempty"`
	UploadURL      string `json:"upload_url,omitempty"`
	ProcessingTime string `json:"processing_time,omitempty"`
	Error          string `json:"error,omitempty"`
}

// New 创建服务器，configPath 为每次合并加载的配置文件路径
func New(host string, port int, configPath string) *Server {
	s := &Server{configPath: configPath}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/merge", s.handleMerge)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // 合并加转换可能耗时较长
	}
	return s
}

// ListenAndServe 启动监听，阻塞直到 Shutdown 或监听失败
func (s *Server) ListenAndServe() error {
	log.Printf("API服务启动: http://%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭，等待进行中的请求结束
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/health" {
		writeJSON(w, http.StatusNotFound, MergeResponse{Success: false, Error: "接口不存在"})
		return
	}
	writeJSON(w, http.StatusOK, MergeResponse{Success: true, Message: "报告合并服务运行中"})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, MergeResponse{Success: false, Error: "仅支持POST"})
		return
	}

	var req MergeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, MergeResponse{Success: false, Error: "请求体解析失败: " + err.Error()})
			return
		}
	}

	start := time.Now()
	result, err := s.runMerge(r.Context(), req)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		log.Printf("合并失败: %v", err)
		resp := MergeResponse{
			Success:        false,
			Error:          err.Error(),
			ProcessingTime: elapsed.String(),
		}
		if result != nil {
			resp.OutputFile = result.OutputPath
		}
		writeJSON(w, statusFor(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, MergeResponse{
		Success:        true,
		Message:        fmt.Sprintf("报告生成成功，替换 %d 处，未匹配 %d 个变量", result.Replacements, len(result.Unmatched)),
		OutputFile:     result.OutputPath,
		PDFFile:        result.PDFPath,
		UploadURL:      result.UploadURL,
		ProcessingTime: elapsed.String(),
	})
}

// runMerge 加载配置、套用请求覆盖项并执行一次合并
func (s *Server) runMerge(ctx context.Context, req MergeRequest) (*domain.MergeResult, error) {
	configPath := s.configPath
	if req.ConfigPath != "" {
		configPath = req.ConfigPath
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if req.TemplatePath != "" {
		cfg.TemplatePath = req.TemplatePath
	}
	if req.UseMinio != nil {
		cfg.UseMinio = *req.UseMinio
	}
	if req.Verbose != nil {
		cfg.Verbose = *req.Verbose
	}

	m, err := merger.Build(cfg)
	if err != nil {
		return nil, err
	}

	return m.Merge(ctx, merger.Options{
		OutputPath:    req.OutputPath,
		TargetDate:    req.TargetDate,
		NoDateFolder:  req.NoDateFolder,
		UploadToMinio: req.UploadToMinio,
	})
}

// statusFor 把错误分类映射到 HTTP 状态码
// 配置和源数据问题算请求方错误，下游转换/上传故障算网关错误
func statusFor(err error) int {
	var (
		cfgErr  *domain.ConfigurationError
		srcErr  *domain.SourceReadError
		tplErr  *domain.TemplateError
		dupErr  *domain.DuplicateKeyError
		convErr *domain.ConversionError
		upErr   *domain.UploadError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &srcErr),
		errors.As(err, &tplErr), errors.As(err, &dupErr):
		return http.StatusBadRequest
	case errors.As(err, &convErr), errors.As(err, &upErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("写出响应失败: %v", err)
	}
}
