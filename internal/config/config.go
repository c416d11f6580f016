// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL 为 MyClub external API 的固定地址。
const DefaultBaseURL = "https://member.myclub.se/api/v3/external/"

// EnvAPIKey 可覆盖 settings.yaml 中的 API_KEY。
const EnvAPIKey = "MYCLUB_API_KEY"

type Config struct {
	API         API      `yaml:"API"`
	Site        Site     `yaml:"SITE"`
	Groups      []Group  `yaml:"GROUPS"`
	SyncNews    bool     `yaml:"SYNC_NEWS"`
	Database    Database `yaml:"DATABASE"`
	Media       Media    `yaml:"MEDIA"`
	Cache       Cache    `yaml:"CACHE"`
	Proxy       Proxy    `yaml:"PROXY"`
	MetricsAddr string   `yaml:"METRICS_ADDR"`
	LogLevel    string   `yaml:"LOG_LEVEL"`
	LogFormat   string   `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale   string   `yaml:"LOG_LOCALE"` // zh-CN|en|sv
	LogColor    string   `yaml:"LOG_COLOR"`  // auto|always|never
}

type API struct {
	// Key 为空时所有请求直接返回 401，不发起网络请求
	Key     string        `yaml:"key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Version string        `yaml:"version"`
}

// Site 为客户端标识头使用的站点信息。
type Site struct {
	Caller    string `yaml:"caller"`
	MultiSite bool   `yaml:"multi_site"`
	URL       string `yaml:"url"`
}

// Group 为需要同步的队伍，PostID 为本地展示该队伍的内容。
type Group struct {
	ID     string `yaml:"id"`
	PostID int64  `yaml:"post_id"`
	Title  string `yaml:"title"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`  // ./myclub.db
}

type Media struct {
	UploadsDir  string `yaml:"uploads_dir"`
	UploadsURL  string `yaml:"uploads_url"`
	TagTaxonomy bool   `yaml:"tag_taxonomy"`
}

type Cache struct {
	// SiteRoot 用于 advanced-cache.php 等文件探测
	SiteRoot string   `yaml:"site_root"`
	Plugins  []Plugin `yaml:"plugins"`
}

// Plugin 为宿主中可见的缓存插件符号（类/函数/常量名）。
// PurgeURL 非空时该符号可调用：清理通过 HTTP 请求完成。
type Plugin struct {
	Symbol   string `yaml:"symbol"`
	PurgeURL string `yaml:"purge_url"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

func Load(path string) (*Config, error) {
	// Load 从文件读取 YAML 并反序列化为 Config，同时进行基础校验与默认值填充。
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadEnv 读取可选的 .env 文件，并以 MYCLUB_API_KEY 覆盖 API.Key。
// 文件不存在不视为错误。
func (c *Config) LoadEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env %s: %w", p, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.API.Key = v
	}
	return nil
}

func (c *Config) Validate() error {
	// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.API.BaseURL, "/") {
		c.API.BaseURL += "/"
	}
	if c.API.Timeout < 0 {
		return errors.New("API.timeout must be >= 0")
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 20 * time.Second
	}
	if c.API.Version == "" {
		c.API.Version = "1.0.0"
	}
	if c.Site.Caller == "" {
		c.Site.Caller = "go-myclub-groups"
	}
	for i, g := range c.Groups {
		if strings.TrimSpace(g.ID) == "" {
			return fmt.Errorf("GROUPS[%d].id required", i)
		}
		if g.PostID < 0 {
			return fmt.Errorf("GROUPS[%d].post_id must be >= 0", i)
		}
	}
	for i, p := range c.Cache.Plugins {
		if strings.TrimSpace(p.Symbol) == "" {
			return fmt.Errorf("CACHE.plugins[%d].symbol required", i)
		}
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./myclub.db"
	}
	if c.Media.UploadsDir == "" {
		c.Media.UploadsDir = "./uploads"
	}
	if c.Media.UploadsURL == "" {
		c.Media.UploadsURL = "/uploads"
	}
	c.Media.UploadsURL = strings.TrimSuffix(c.Media.UploadsURL, "/")
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}
