// 命令行入口：
// - 解析 flags 与 settings.yaml/.env
// - 初始化日志、HTTP 客户端、数据库、缓存插件登记
// - 执行同步（-sync）、导出（-export）或拆除活动数据表（-teardown）
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-myclub-groups/internal/cache"
	"go-myclub-groups/internal/config"
	"go-myclub-groups/internal/export"
	"go-myclub-groups/internal/fetch"
	"go-myclub-groups/internal/logx"
	"go-myclub-groups/internal/media"
	"go-myclub-groups/internal/model"
	"go-myclub-groups/internal/myclub"
	"go-myclub-groups/internal/store"
	"go-myclub-groups/internal/syncer"
)

func main() {
	var (
		configPath  = flag.String("config", "settings.yaml", "path to settings.yaml")
		envPath     = flag.String("env", ".env", "path to .env (optional)")
		syncWhat    = flag.String("sync", "all", "what to sync: calendar|groups|news|all|none")
		exportPath  = flag.String("export", "", "write calendar activities as json to this path")
		exportPost  = flag.Int64("export-post", 0, "export activities of this post instead of the club calendar")
		teardown    = flag.Bool("teardown", false, "drop the activity and link tables and exit")
		metricsAddr = flag.String("metrics-addr", "", "serve /metrics on this address (overrides METRICS_ADDR)")
	)
	flag.Parse()

	// 1) 加载配置，.env 中的 MYCLUB_API_KEY 覆盖配置文件
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.LoadEnv(*envPath); err != nil {
		log.Fatalf("load env: %v", err)
	}
	// 2) 初始化日志：级别/格式/语言/颜色
	logx.Init(logx.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Locale: cfg.LogLocale, Color: cfg.LogColor})

	ctx := context.Background()
	st, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	if *teardown {
		if err := st.Teardown(ctx); err != nil {
			logx.Errorf("拆除数据表失败：%v", err)
			os.Exit(1)
		}
		logx.Infof("已删除活动数据表")
		return
	}

	// 3) API 凭据：配置中有值时写入设置项，否则沿用已保存的值
	apiKey, err := resolveAPIKey(ctx, st, cfg.API.Key)
	if err != nil {
		log.Fatalf("api key: %v", err)
	}
	if apiKey == "" {
		logx.Warnf("未配置 API 凭据，所有请求将返回 401")
	}

	addr := cfg.MetricsAddr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		go serveMetrics(addr)
	}

	// 4) HTTP 客户端：固定超时，不重试
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.API.Timeout,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}
	api := myclub.New(cl, cfg.API.BaseURL, apiKey, myclub.Identity{
		Caller:    cfg.Site.Caller,
		MultiSite: cfg.Site.MultiSite,
		Site:      cfg.Site.URL,
		Version:   cfg.API.Version,
	})
	im := media.NewImporter(st, cl, media.Options{
		UploadsDir:  cfg.Media.UploadsDir,
		UploadsURL:  cfg.Media.UploadsURL,
		TagTaxonomy: cfg.Media.TagTaxonomy,
	})
	reg := cache.NewRegistry(cfg.Cache.SiteRoot)
	for _, p := range cfg.Cache.Plugins {
		var fn cache.PurgeFunc
		if p.PurgeURL != "" {
			fn = cache.HTTPPurge(cl, p.PurgeURL)
		}
		reg.Register(p.Symbol, fn)
	}
	inv := cache.NewInvalidator(reg)
	if layer := inv.Detect(); layer != cache.LayerNone {
		logx.Infof("检测到缓存层：%s", layer)
	}

	// 5) 同步
	run := syncer.New(cfg, st, api, im, inv)
	failed := false
	switch strings.ToLower(*syncWhat) {
	case "none":
	case "calendar":
		failed = report(run.SyncCalendar(ctx))
	case "groups":
		for _, g := range cfg.Groups {
			failed = report(run.SyncGroup(ctx, g)) || failed
		}
	case "news":
		failed = report(run.SyncNews(ctx))
	case "all":
		logx.Infof("开始同步：队伍=%d 新闻=%v", len(cfg.Groups), cfg.SyncNews)
		if _, err := run.Run(ctx); err != nil {
			failed = true
		}
	default:
		log.Fatalf("unknown -sync value: %s", *syncWhat)
	}

	// 6) 导出
	if *exportPath != "" {
		var err error
		if *exportPost != 0 {
			err = export.PostJSON(ctx, st, *exportPost, *exportPath)
		} else {
			err = export.CalendarJSON(ctx, st, *exportPath)
		}
		if err != nil {
			log.Fatalf("export json: %v", err)
		}
		logx.Infof("已导出 %s", *exportPath)
	}
	if failed {
		os.Exit(1)
	}
}

// resolveAPIKey 配置值非空时写入设置项（未变化则跳过），为空时读取已保存的值。
func resolveAPIKey(ctx context.Context, st *store.SQLite, fromConfig string) (string, error) {
	fromConfig = strings.TrimSpace(fromConfig)
	if fromConfig == "" {
		return st.Option(ctx, store.OptionAPIKey, "")
	}
	if _, err := st.PutOption(ctx, model.Option{Name: store.OptionAPIKey, Value: fromConfig, Autoload: true}, true); err != nil {
		return "", err
	}
	return fromConfig, nil
}

func report(s syncer.Step) bool {
	if s.Err != nil {
		logx.Errorf("同步失败：%s 错误=%v", s.Name, s.Err)
		return true
	}
	logx.Infof("同步完成：%s 写入=%d 变化=%d 移除=%d", s.Name, s.Upserted, s.Changed, s.Removed)
	return false
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logx.Infof("metrics 监听：%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Errorf("metrics 服务退出：%v", err)
	}
}
