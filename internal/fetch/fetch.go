// 包 fetch 封装 HTTP 客户端（代理/超时），供 API 请求与图片下载使用。
// 请求只发一次，不做重试：超时或传输错误直接交给调用方。
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout 为单次请求的固定超时。
const DefaultTimeout = 20 * time.Second

// MaxDownloadBytes 为单个下载文件的上限。
const MaxDownloadBytes = 32 << 20

// Client 为带固定超时的 HTTP 客户端。
type Client struct {
	http   *http.Client
	header http.Header
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	// Header 为每个请求都会带上的默认头，单次请求可覆盖。
	Header http.Header
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	var httpProxy, httpsProxy *url.URL
	var err error
	if opts.ProxyHTTP != "" {
		if httpProxy, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if opts.ProxyHTTPS != "" {
		if httpsProxy, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && httpsProxy != nil {
				return httpsProxy, nil
			}
			if req.URL.Scheme == "http" && httpProxy != nil {
				return httpProxy, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		http:   &http.Client{Transport: transport, Timeout: opts.Timeout},
		header: opts.Header.Clone(),
	}, nil
}

// Get 发送一次 GET，任何 HTTP 状态码都原样返回，由调用方判断。
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, vs := range c.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Download 将 rawURL 的内容写入 w（最多 MaxDownloadBytes），返回写入字节数与 Content-Type。
// 非 2xx 视为失败。
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, string, error) {
	resp, err := c.Get(ctx, rawURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, "", fmt.Errorf("GET %s: http status: %s", rawURL, resp.Status)
	}
	n, err := io.Copy(w, io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return n, "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if n > MaxDownloadBytes {
		return n, "", fmt.Errorf("download %s: exceeds %d bytes", rawURL, MaxDownloadBytes)
	}
	return n, resp.Header.Get("Content-Type"), nil
}
