// 包 syncer 负责同步主流程编排：
// - 俱乐部日历：写入活动并标记为日历展示，上游已消失的活动取消展示
// - 队伍：写入活动并关联到队伍内容，清理失效关联，设置队伍图片
// - 新闻：按远端 id 新增或更新新闻内容
// 内容有变化时清理页面缓存。各步骤串行执行，单步失败只记录不终止。
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"go-myclub-groups/internal/cache"
	"go-myclub-groups/internal/config"
	"go-myclub-groups/internal/logx"
	"go-myclub-groups/internal/media"
	"go-myclub-groups/internal/metrics"
	"go-myclub-groups/internal/model"
	"go-myclub-groups/internal/myclub"
	"go-myclub-groups/internal/sanitize"
	"go-myclub-groups/internal/store"
)

// Invalidator 在内容变更后清理缓存。
type Invalidator interface {
	Invalidate(ctx context.Context, contentID int64) cache.Result
}

// Runner 同步执行器，持有配置/存储/API 客户端/媒体导入/缓存清理。
type Runner struct {
	cfg      *config.Config
	store    *store.SQLite
	api      *myclub.Client
	media    *media.Importer
	cache    Invalidator
	validate *validator.Validate
}

// New 创建 Runner。
func New(cfg *config.Config, s *store.SQLite, api *myclub.Client, im *media.Importer, inv Invalidator) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    s,
		api:      api,
		media:    im,
		cache:    inv,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Run 执行一轮同步：日历 → 队伍 → 新闻（SYNC_NEWS 开启时）。
// 返回各步骤统计与合并后的错误。
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := NewReport()
	var errs []error
	record := func(s Step) {
		rep.Add(s)
		metrics.RecordSync(s.Name, s.Err)
		if s.Err != nil {
			logx.Errorf("同步失败：%s 错误=%v", s.Name, s.Err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
			return
		}
		logx.Infof("同步完成：%s 写入=%d 变化=%d 移除=%d", s.Name, s.Upserted, s.Changed, s.Removed)
	}

	record(r.SyncCalendar(ctx))
	for _, g := range r.cfg.Groups {
		record(r.SyncGroup(ctx, g))
	}
	if r.cfg.SyncNews {
		record(r.SyncNews(ctx))
	}
	metrics.RecordRunFinished(time.Now())
	return rep, errors.Join(errs...)
}

// SyncCalendar 同步俱乐部日历。
func (r *Runner) SyncCalendar(ctx context.Context) Step {
	st := Step{Name: "calendar"}
	env := r.api.LoadCalendar(ctx)
	if !env.OK() {
		st.Err = fmt.Errorf("load calendar: status %d", env.Status)
		return st
	}
	seen := make(map[string]struct{}, len(env.Result.Results))
	// 展示了已变化活动的队伍内容，同步结束后统一清理缓存
	dirty := make(map[int64]struct{})
	for _, p := range env.Result.Results {
		if p.UID != "" {
			seen[p.UID] = struct{}{}
		}
		a, ok := r.activity(p)
		if !ok {
			continue
		}
		changed, err := r.store.UpsertActivity(ctx, a, true)
		if err != nil {
			st.Err = err
			return st
		}
		r.count(&st, changed)
		if changed {
			if err := r.collectPosts(ctx, a.UID, dirty); err != nil {
				st.Err = err
				return st
			}
		}
	}

	current, err := r.store.CalendarUIDs(ctx)
	if err != nil {
		st.Err = err
		return st
	}
	for uid := range current {
		if _, ok := seen[uid]; ok {
			continue
		}
		// 先取关联：活动被删除时关联随之级联删除
		if err := r.collectPosts(ctx, uid, dirty); err != nil {
			st.Err = err
			return st
		}
		if _, err := r.store.HideFromCalendar(ctx, uid); err != nil {
			st.Err = err
			return st
		}
		st.Removed++
	}

	for id := range dirty {
		st.Purged = r.cache.Invalidate(ctx, id).OK() || st.Purged
	}
	return st
}

// collectPosts 把展示活动 uid 的内容 id 加入 into。
func (r *Runner) collectPosts(ctx context.Context, uid string, into map[int64]struct{}) error {
	ids, err := r.store.ActivityPostIDs(ctx, uid)
	if err != nil {
		return err
	}
	for _, id := range ids {
		into[id] = struct{}{}
	}
	return nil
}

// SyncGroup 同步单个队伍到其内容条目。PostID 为 0 时按队伍 id 自动创建内容。
func (r *Runner) SyncGroup(ctx context.Context, g config.Group) Step {
	st := Step{Name: "group:" + g.ID}
	env, err := r.api.LoadGroup(ctx, g.ID)
	if err != nil {
		st.Err = err
		return st
	}
	if !env.OK() {
		st.Err = fmt.Errorf("load group: status %d", env.Status)
		return st
	}
	grp := env.Result

	post, created, err := r.groupPost(ctx, g, grp)
	if err != nil {
		st.Err = err
		return st
	}
	dirty := created

	linked, err := r.store.PostActivityUIDs(ctx, post.ID)
	if err != nil {
		st.Err = err
		return st
	}
	seen := make(map[string]struct{}, len(grp.Activities))
	for _, p := range grp.Activities {
		if p.UID != "" {
			seen[p.UID] = struct{}{}
		}
		a, ok := r.activity(p)
		if !ok {
			continue
		}
		a.PostID = post.ID
		// 日历展示标记由日历同步决定，这里保留原值
		cur, err := r.store.Activity(ctx, a.UID)
		if err != nil {
			st.Err = err
			return st
		}
		visible := cur != nil && cur.ShowOnClubCalendar
		changed, err := r.store.UpsertActivity(ctx, a, visible)
		if err != nil {
			st.Err = err
			return st
		}
		r.count(&st, changed)
		dirty = dirty || changed
	}
	for _, uid := range linked {
		if _, ok := seen[uid]; ok {
			continue
		}
		if err := r.store.UnlinkFromPost(ctx, post.ID, uid); err != nil {
			st.Err = err
			return st
		}
		st.Removed++
		dirty = true
	}

	if img := grp.Image.URL(); img != "" {
		caption := sanitize.Text(grp.Image.Caption)
		if err := r.media.SetFeaturedImage(ctx, post.ID, img, "group_", caption, string(model.PostKindGroup)); err != nil {
			logx.Warnf("设置队伍图片失败：%s 错误=%v", g.ID, err)
		} else {
			after, err := r.store.Post(ctx, post.ID)
			if err != nil {
				st.Err = err
				return st
			}
			if after != nil && after.FeaturedImageID != post.FeaturedImageID {
				dirty = true
			}
		}
	}

	if dirty {
		st.Purged = r.cache.Invalidate(ctx, post.ID).OK()
	}
	return st
}

// groupPost 返回队伍对应的内容条目；未配置 PostID 时按远端 id 查找或创建。
func (r *Runner) groupPost(ctx context.Context, g config.Group, grp model.Group) (*model.Post, bool, error) {
	if g.PostID != 0 {
		p, err := r.store.Post(ctx, g.PostID)
		if err != nil {
			return nil, false, err
		}
		if p == nil {
			return nil, false, fmt.Errorf("post %d not found", g.PostID)
		}
		return p, false, nil
	}
	title := g.Title
	if title == "" {
		title = sanitize.Text(grp.Name)
	}
	content := sanitize.Text(grp.InfoText)
	p, err := r.store.PostByExternalID(ctx, model.PostKindGroup, g.ID)
	if err != nil {
		return nil, false, err
	}
	if p != nil {
		if p.Title != title || p.Content != content {
			p.Title, p.Content = title, content
			if err := r.store.UpdatePost(ctx, *p); err != nil {
				return nil, false, err
			}
			return p, true, nil
		}
		return p, false, nil
	}
	id, err := r.store.CreatePost(ctx, model.Post{Kind: model.PostKindGroup, ExternalID: g.ID, Title: title, Content: content})
	if err != nil {
		return nil, false, err
	}
	logx.Infof("已创建队伍内容：%s id=%d", title, id)
	p, err = r.store.Post(ctx, id)
	return p, true, err
}

// activity 校验远端活动并转换为存储模型；不合法的条目跳过。
func (r *Runner) activity(p model.ActivityPayload) (model.Activity, bool) {
	if err := r.validate.Struct(p); err != nil {
		logx.Warnf("跳过不合法的活动：uid=%q 错误=%v", p.UID, err)
		return model.Activity{}, false
	}
	return model.Activity{
		UID:          p.UID,
		Title:        sanitize.Text(p.Title),
		Day:          p.Day,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Location:     sanitize.Text(p.Location),
		Description:  p.Description,
		CalendarName: sanitize.Text(p.CalendarName),
		Type:         sanitize.Text(p.Type),
		BaseType:     sanitize.Text(p.BaseType),
		MeetUpTime:   p.MeetUpTime,
		MeetUpPlace:  sanitize.Text(p.MeetUpPlace),
	}, true
}

func (r *Runner) count(st *Step, changed bool) {
	st.Upserted++
	if changed {
		st.Changed++
	}
	metrics.RecordUpsert(changed)
}
