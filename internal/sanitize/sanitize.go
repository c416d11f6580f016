// 包 sanitize 提供字符串/切片清洗与文件名规范化。
package sanitize

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict     = bluemonday.StrictPolicy()
	spaces     = regexp.MustCompile(`\s+`)
	unsafeName = regexp.MustCompile(`[^a-z0-9._-]+`)
	dashes     = regexp.MustCompile(`-{2,}`)
	angles     = strings.NewReplacer("<", "&lt;", ">", "&gt;")
)

// Text 去除所有标签并折叠空白，用于标题/地点等单行字段。
// 结果中不含尖括号，可直接嵌入 HTML。
func Text(s string) string {
	// 先解码再去标签：以实体编码的标签同样会被去除
	s = strict.Sanitize(html.UnescapeString(s))
	// bluemonday 会把 & 等转义，单行字段保存原文，残留的尖括号保持转义
	s = angles.Replace(html.UnescapeString(s))
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// TextSlice 对每个元素执行 Text，并丢弃清洗后为空的元素。
func TextSlice(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := Text(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Description 为描述字段的存储形态：换行转为 <br />，整体再做 HTML 转义。
// 存储层即保存转义后的值，展示层不再处理。
func Description(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "<br />\n")
	return html.EscapeString(s)
}

// FileName 从 URL 提取文件名并规范化：小写、非法字符替换为 -。
// 无法提取时返回空串。
func FileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		return ""
	}
	if un, err := url.PathUnescape(base); err == nil {
		base = un
	}
	name := strings.ToLower(strings.TrimSpace(base))
	name = unsafeName.ReplaceAllString(name, "-")
	name = dashes.ReplaceAllString(name, "-")
	return strings.Trim(name, "-.")
}
