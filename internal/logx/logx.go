// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色配置
// - pretty 输出支持中文/英文/瑞典语标签
// - 通过 Debugf/Infof/Warnf/Errorf 暴露，便于将来替换底层实现
package logx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Options 为日志初始化参数，零值等价于 info + pretty + zh-CN + auto。
type Options struct {
	Level  string
	Format string // pretty|json|text
	Locale string // zh-CN|en|sv
	Color  string // auto|always|never
	Output io.Writer
}

// levelSilent 高于所有级别，用于关闭输出。
const levelSilent slog.Level = 100

// Init 根据 Options 初始化全局日志器。
func Init(o Options) {
	w := o.Output
	if w == nil {
		w = os.Stdout
	}
	lv := ParseLevel(o.Level)
	opts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(o.Format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty", "":
		handler = NewPrettyHandler(w, lv, o.Locale, o.Color)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLevel 将字符串级别解析为 slog.Level。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		return levelSilent
	default:
		return slog.LevelInfo
	}
}

func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// PrettyHandler 为人读格式：时间 + 标签 + 消息 + k=v。
type PrettyHandler struct {
	w      io.Writer
	level  slog.Level
	labels map[slog.Level]string
	color  bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	group  string
}

// NewPrettyHandler 创建 pretty Handler。
func NewPrettyHandler(w io.Writer, lv slog.Level, locale string, colorMode string) *PrettyHandler {
	if w == nil {
		w = os.Stdout
	}
	return &PrettyHandler{
		w:      w,
		level:  lv,
		labels: labelsFor(locale),
		color:  shouldColor(w, colorMode),
		mu:     &sync.Mutex{},
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.level < levelSilent && l >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.Format("2006-01-02 15:04:05"))
	buf.WriteByte(' ')
	lbl, ok := h.labels[r.Level]
	if !ok {
		lbl = fmt.Sprintf("[L%d]", r.Level)
	}
	if h.color {
		lbl = colorize(lbl, r.Level)
	}
	buf.WriteString(lbl)
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	prefix := ""
	if h.group != "" {
		prefix = h.group + "."
	}
	write := func(p string, a slog.Attr) {
		buf.WriteByte(' ')
		buf.WriteString(p)
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		buf.WriteString(a.Value.String())
	}
	// h.attrs 在 WithAttrs 时已带上分组前缀
	for _, a := range h.attrs {
		write("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		cp.attrs = append(cp.attrs, a)
	}
	return &cp
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group += "." + name
	}
	return &cp
}

var (
	labelsZH = map[slog.Level]string{
		slog.LevelDebug: "[调试]",
		slog.LevelInfo:  "[信息]",
		slog.LevelWarn:  "[警告]",
		slog.LevelError: "[错误]",
	}
	labelsEN = map[slog.Level]string{
		slog.LevelDebug: "[DEBUG]",
		slog.LevelInfo:  "[INFO]",
		slog.LevelWarn:  "[WARN]",
		slog.LevelError: "[ERROR]",
	}
	labelsSV = map[slog.Level]string{
		slog.LevelDebug: "[FELSÖK]",
		slog.LevelInfo:  "[INFO]",
		slog.LevelWarn:  "[VARNING]",
		slog.LevelError: "[FEL]",
	}
)

// labelsFor 按语言选择标签，未知语言回退为中文。
func labelsFor(locale string) map[slog.Level]string {
	l := strings.ToLower(strings.TrimSpace(locale))
	switch {
	case strings.HasPrefix(l, "en"):
		return labelsEN
	case strings.HasPrefix(l, "sv"):
		return labelsSV
	default:
		return labelsZH
	}
}

// shouldColor 判断是否启用颜色：遵循 LOG_COLOR 与 NO_COLOR。
func shouldColor(w io.Writer, mode string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "auto", "":
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				return fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return false
}

func colorize(s string, l slog.Level) string {
	code := "0"
	switch l {
	case slog.LevelDebug:
		code = "90"
	case slog.LevelInfo:
		code = "36"
	case slog.LevelWarn:
		code = "33"
	case slog.LevelError:
		code = "31"
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
