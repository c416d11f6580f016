package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go-myclub-groups/internal/fetch"
)

// ErrNotCallable 表示符号未注册为可调用。
var ErrNotCallable = errors.New("symbol not callable")

// PurgeFunc 为宿主侧的清理函数。
type PurgeFunc func(ctx context.Context, contentID int64) error

// Registry 为 Host 的实现：插件登记符号与清理函数，文件探测基于站点根目录。
type Registry struct {
	root    string
	symbols map[string]PurgeFunc
}

func NewRegistry(siteRoot string) *Registry {
	return &Registry{root: siteRoot, symbols: map[string]PurgeFunc{}}
}

// Register 登记符号；fn 为 nil 时仅表示符号存在（类/常量）。
func (r *Registry) Register(symbol string, fn PurgeFunc) {
	r.symbols[symbol] = fn
}

func (r *Registry) Defined(symbol string) bool {
	_, ok := r.symbols[symbol]
	return ok
}

func (r *Registry) Callable(symbol string) bool {
	return r.symbols[symbol] != nil
}

func (r *Registry) FileExists(rel string) bool {
	if r.root == "" {
		return false
	}
	fi, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(rel)))
	return err == nil && !fi.IsDir()
}

func (r *Registry) Call(ctx context.Context, symbol string, contentID int64) error {
	fn := r.symbols[symbol]
	if fn == nil {
		return ErrNotCallable
	}
	return fn(ctx, contentID)
}

// PurgeError 表示清理接口返回了非成功状态码。
type PurgeError struct {
	Status int
}

func (e *PurgeError) Error() string {
	return "cache purge failed with status " + http.StatusText(e.Status)
}

// HTTPPurge 返回通过 HTTP 请求清理缓存的函数：GET endpoint?post_id=<id>。
func HTTPPurge(cl *fetch.Client, endpoint string) PurgeFunc {
	return func(ctx context.Context, contentID int64) error {
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		q := u.Query()
		q.Set("post_id", strconv.FormatInt(contentID, 10))
		u.RawQuery = q.Encode()
		resp, err := cl.Get(ctx, u.String(), nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return &PurgeError{Status: resp.StatusCode}
		}
		return nil
	}
}
