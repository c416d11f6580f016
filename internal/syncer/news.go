package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go-myclub-groups/internal/logx"
	"go-myclub-groups/internal/model"
	"go-myclub-groups/internal/sanitize"
)

// SyncNews 按远端 id 新增或更新新闻内容，并设置新闻图片。
func (r *Runner) SyncNews(ctx context.Context) Step {
	st := Step{Name: "news"}
	env, err := r.api.LoadNews(ctx)
	if err != nil {
		st.Err = err
		return st
	}
	if !env.OK() {
		st.Err = fmt.Errorf("load news: status %d", env.Status)
		return st
	}
	for _, it := range env.Result.Results {
		if it.ID == "" {
			continue
		}
		id, dirty, err := r.upsertNews(ctx, it)
		if err != nil {
			st.Err = err
			return st
		}
		st.Upserted++

		img, caption := it.Image.URL(), it.ImageCaption
		if caption == "" && it.Image != nil {
			caption = it.Image.Caption
		}
		if img == "" {
			img = firstImage(it.Text)
		}
		if img != "" {
			before, err := r.store.Post(ctx, id)
			if err != nil {
				st.Err = err
				return st
			}
			if err := r.media.SetFeaturedImage(ctx, id, img, "news_", sanitize.Text(caption), string(model.PostKindNews)); err != nil {
				logx.Warnf("设置新闻图片失败：%s 错误=%v", it.ID, err)
			} else {
				after, err := r.store.Post(ctx, id)
				if err != nil {
					st.Err = err
					return st
				}
				if before != nil && after != nil && before.FeaturedImageID != after.FeaturedImageID {
					dirty = true
				}
			}
		}
		if dirty {
			st.Changed++
			st.Purged = r.cache.Invalidate(ctx, id).OK() || st.Purged
		}
	}
	return st
}

func (r *Runner) upsertNews(ctx context.Context, it model.NewsItem) (int64, bool, error) {
	title := sanitize.Text(it.Title)
	content := newsContent(it)
	p, err := r.store.PostByExternalID(ctx, model.PostKindNews, it.ID)
	if err != nil {
		return 0, false, err
	}
	if p == nil {
		id, err := r.store.CreatePost(ctx, model.Post{Kind: model.PostKindNews, ExternalID: it.ID, Title: title, Content: content})
		if err != nil {
			return 0, false, err
		}
		logx.Infof("已创建新闻：%s id=%d", title, id)
		return id, true, nil
	}
	if p.Title == title && p.Content == content {
		return p.ID, false, nil
	}
	p.Title, p.Content = title, content
	if err := r.store.UpdatePost(ctx, *p); err != nil {
		return 0, false, err
	}
	return p.ID, true, nil
}

// newsContent 拼接导语与正文；导语为纯文本，正文为远端 HTML。
func newsContent(it model.NewsItem) string {
	ingress := sanitize.Text(it.Ingress)
	text := strings.TrimSpace(it.Text)
	switch {
	case ingress == "":
		return text
	case text == "":
		return "<p>" + ingress + "</p>"
	}
	return "<p>" + ingress + "</p>\n" + text
}

// firstImage 返回 HTML 中第一张图片的地址。
func firstImage(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}
