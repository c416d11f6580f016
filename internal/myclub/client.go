// 包 myclub 为 MyClub external API（v3）的客户端。
// 每个接口都返回 {Result, Status} 信封，调用方自行判断 Status == 200。
//
// 传输失败的处理因接口而异（保持与既有调用方一致）：
//   - LoadCalendar / LoadMenu / LoadOtherTeamsMenu：记录日志并返回 Status=500 的信封
//   - LoadGroup / LoadNews：原样返回传输错误
package myclub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"go-myclub-groups/internal/fetch"
	"go-myclub-groups/internal/logx"
	"go-myclub-groups/internal/model"
)

// Envelope 为统一的返回结构。
type Envelope[T any] struct {
	Result T
	Status int
}

// OK 表示上游返回 200。
func (e Envelope[T]) OK() bool { return e.Status == http.StatusOK }

// Identity 为客户端标识头的取值。
type Identity struct {
	Caller    string
	MultiSite bool
	Site      string
	Version   string
}

// Client 持有 HTTP 客户端、接口地址与凭据。
type Client struct {
	http    *fetch.Client
	baseURL string
	apiKey  string
	id      Identity
}

// New 创建客户端；apiKey 为空时所有接口直接返回 401。
func New(cl *fetch.Client, baseURL, apiKey string, id Identity) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{http: cl, baseURL: baseURL, apiKey: strings.TrimSpace(apiKey), id: id}
}

// HasCredential 表示是否配置了 API 凭据。
func (c *Client) HasCredential() bool { return c.apiKey != "" }

// LoadCalendar 拉取俱乐部日历。
func (c *Client) LoadCalendar(ctx context.Context) Envelope[model.Calendar] {
	env, err := get[model.Calendar](ctx, c, "calendar/", calendarQuery())
	if err != nil {
		logx.Errorf("加载俱乐部日历失败：%v", err)
		return Envelope[model.Calendar]{Status: http.StatusInternalServerError}
	}
	return env
}

// LoadMenu 拉取队伍菜单。
func (c *Client) LoadMenu(ctx context.Context) Envelope[model.Menu] {
	env, err := get[model.Menu](ctx, c, "team_menu/", listQuery())
	if err != nil {
		logx.Errorf("加载队伍菜单失败：%v", err)
		return Envelope[model.Menu]{Status: http.StatusInternalServerError}
	}
	return env
}

// LoadOtherTeamsMenu 拉取“其他队伍”菜单。
func (c *Client) LoadOtherTeamsMenu(ctx context.Context) Envelope[model.Menu] {
	env, err := get[model.Menu](ctx, c, "team_menu/other_teams/", listQuery())
	if err != nil {
		logx.Errorf("加载其他队伍菜单失败：%v", err)
		return Envelope[model.Menu]{Status: http.StatusInternalServerError}
	}
	return env
}

// LoadGroup 依次拉取队伍信息、成员、日历；任一步非 200 即返回 500，丢弃已取得的部分数据。
func (c *Client) LoadGroup(ctx context.Context, groupID string) (Envelope[model.Group], error) {
	failed := Envelope[model.Group]{Status: http.StatusInternalServerError}
	if !c.HasCredential() {
		return Envelope[model.Group]{Status: http.StatusUnauthorized}, nil
	}
	base := "teams/" + url.PathEscape(groupID) + "/"

	info, err := get[model.Group](ctx, c, base+"info/", nil)
	if err != nil {
		return Envelope[model.Group]{}, err
	}
	if !info.OK() {
		logx.Warnf("队伍 %s 信息返回 %d", groupID, info.Status)
		return failed, nil
	}
	members, err := get[model.Members](ctx, c, base+"members/", listQuery())
	if err != nil {
		return Envelope[model.Group]{}, err
	}
	if !members.OK() {
		logx.Warnf("队伍 %s 成员返回 %d", groupID, members.Status)
		return failed, nil
	}
	cal, err := get[model.Calendar](ctx, c, base+"calendar/", calendarQuery())
	if err != nil {
		return Envelope[model.Group]{}, err
	}
	if !cal.OK() {
		logx.Warnf("队伍 %s 日历返回 %d", groupID, cal.Status)
		return failed, nil
	}

	g := info.Result
	g.Members = members.Result.Results
	g.Activities = cal.Result.Results
	return Envelope[model.Group]{Result: g, Status: http.StatusOK}, nil
}

// LoadNews 拉取新闻列表。
func (c *Client) LoadNews(ctx context.Context) (Envelope[model.News], error) {
	return get[model.News](ctx, c, "news/", listQuery())
}

func listQuery() url.Values {
	return url.Values{"limit": {"null"}}
}

func calendarQuery() url.Values {
	return url.Values{"limit": {"null"}, "version": {"2"}}
}

func (c *Client) headers() http.Header {
	return http.Header{
		"Accept":             {"application/json"},
		"Authorization":      {"Api-Key " + c.apiKey},
		"X-Myclub-Caller":    {c.id.Caller},
		"X-Myclub-Multisite": {strconv.FormatBool(c.id.MultiSite)},
		"X-Myclub-Site":      {c.id.Site},
		"X-Myclub-Version":   {c.id.Version},
	}
}

// get 发起一次请求并解码 JSON；无凭据时不发请求直接返回 401。
// 返回的 error 只代表传输失败，HTTP 状态码原样放进信封。
func get[T any](ctx context.Context, c *Client, path string, q url.Values) (Envelope[T], error) {
	var env Envelope[T]
	if !c.HasCredential() {
		env.Status = http.StatusUnauthorized
		return env, nil
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := c.http.Get(ctx, u, c.headers())
	if err != nil {
		return env, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	env.Status = resp.StatusCode

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Envelope[T]{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(b, &env.Result); err != nil {
		logx.Warnf("解析 %s 响应失败（状态 %d）：%v", path, resp.StatusCode, err)
		var zero T
		env.Result = zero
	}
	return env, nil
}
