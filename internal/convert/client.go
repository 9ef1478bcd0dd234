package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/shilin66/report-merger/internal/domain"
)

// Client 外部文档转换服务（LibreOffice 无头服务）的 HTTP 客户端
// 转换服务是所有请求共享的长驻进程，并发请求在服务端排队；
// 这里只做阻塞的请求/响应，连接类瞬时故障重试一次，其余按失败处理
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient 创建转换服务客户端
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Convert 把 DOCX 文件发送给转换服务，返回 PDF 字节
func (c *Client) Convert(ctx context.Context, docxPath string) ([]byte, error) {
	data, err := c.post(ctx, docxPath)
	if err == nil {
		return data, nil
	}

	// 连接类瞬时故障重试一次
	if isTransient(err) {
		data, retryErr := c.post(ctx, docxPath)
		if retryErr == nil {
			return data, nil
		}
		err = retryErr
	}

	return nil, &domain.ConversionError{Input: docxPath, Err: err}
}

// post 执行一次转换请求
func (c *Client) post(ctx context.Context, docxPath string) ([]byte, error) {
	file, err := os.Open(docxPath)
	if err != nil {
		return nil, fmt.Errorf("打开待转换文件失败: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(docxPath))
	if err != nil {
		return nil, fmt.Errorf("构造表单失败: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("读取待转换文件失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("构造表单失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("构造转换请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求转换服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("转换服务返回 %d: %s", resp.StatusCode, string(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取转换结果失败: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("转换服务返回空结果")
	}
	return data, nil
}

// isTransient 判断错误是否为可重试的连接类瞬时故障
// 连接中途断开在客户端可能表现为 EOF 而不是网络错误
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
