package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-myclub-groups/internal/model"
)

func TestSQLite_MigrateIdempotentAndAddsColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	// 旧版本库：activities 缺少 base_type
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE activities (id INTEGER PRIMARY KEY AUTOINCREMENT, uid TEXT NOT NULL UNIQUE,
        show_on_club_calendar INTEGER NOT NULL DEFAULT 0, title TEXT NOT NULL DEFAULT '', day TEXT NOT NULL DEFAULT '',
        start_time TEXT NOT NULL DEFAULT '', end_time TEXT NOT NULL DEFAULT '', location TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '', calendar_name TEXT NOT NULL DEFAULT '', type TEXT NOT NULL DEFAULT '',
        meet_up_time INTEGER, meet_up_place TEXT NOT NULL DEFAULT '')`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO activities(uid, title) VALUES('old', 'kept')`)
	require.NoError(t, err)
	raw.Close()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx), "second migrate")

	ok, err := s.hasColumn(ctx, "activities", "base_type")
	require.NoError(t, err)
	require.True(t, ok, "base_type column missing")

	a, err := s.Activity(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, a)
	require.Equal(t, "kept", a.Title)
	require.Empty(t, a.BaseType)
}

func tableExists(t *testing.T, s *SQLite, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n))
	return n == 1
}

func TestSQLite_TeardownDropsActivityTablesOnly(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	post := newPost(t, s, "P12")
	a := sample("u1")
	a.PostID = post
	_, err := s.UpsertActivity(ctx, a, true)
	require.NoError(t, err)
	_, err = s.PutOption(ctx, model.Option{Name: OptionAPIKey, Value: "k1", Autoload: true}, true)
	require.NoError(t, err)

	require.NoError(t, s.Teardown(ctx))
	require.False(t, tableExists(t, s, "activity_links"))
	require.False(t, tableExists(t, s, "activities"))

	// 宿主内容与设置项保留
	for _, name := range []string{"posts", "attachments", "attachment_meta", "attachment_tags", "options"} {
		require.True(t, tableExists(t, s, name), name)
	}
	p, err := s.Post(ctx, post)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, "P12", p.Title)
	v, err := s.Option(ctx, OptionAPIKey, "")
	require.NoError(t, err)
	require.Equal(t, "k1", v)

	// 拆除后可以重新迁移
	require.NoError(t, s.Migrate(ctx))
	require.True(t, tableExists(t, s, "activities"))
	require.NoError(t, s.Teardown(ctx), "teardown is repeatable")
}

func TestOptions_PutAndFastPath(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	v, err := s.Option(ctx, OptionAPIKey, "none")
	require.NoError(t, err)
	require.Equal(t, "none", v)

	written, err := s.PutOption(ctx, model.Option{Name: OptionAPIKey, Value: "k1", Autoload: true}, true)
	require.NoError(t, err)
	require.True(t, written)
	written, _ = s.PutOption(ctx, model.Option{Name: OptionAPIKey, Value: "k1", Autoload: true}, true)
	require.False(t, written, "unchanged value must skip write")
	written, _ = s.PutOption(ctx, model.Option{Name: OptionAPIKey, Value: "k1", Autoload: true}, false)
	require.True(t, written, "forced write must write")
	written, _ = s.PutOption(ctx, model.Option{Name: OptionAPIKey, Value: "k2", Autoload: true}, true)
	require.True(t, written, "changed value must write")
	v, _ = s.Option(ctx, OptionAPIKey, "")
	require.Equal(t, "k2", v)

	created, _ := s.AddOption(ctx, model.Option{Name: OptionAPIKey, Value: "other"})
	require.False(t, created, "add must not overwrite existing option")
	_, _ = s.AddOption(ctx, model.Option{Name: "lazy", Value: "x", Autoload: false})
	auto, err := s.AutoloadOptions(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{OptionAPIKey: "k2"}, auto)

	require.NoError(t, s.DeleteOption(ctx, "lazy"))
	v, _ = s.Option(ctx, "lazy", "gone")
	require.Equal(t, "gone", v)
}

func TestAttachments_MetaTagsAndFeaturedNulling(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	id, err := s.InsertAttachment(ctx, model.Attachment{FileName: "lag.jpg", Path: "2024/05/lag.jpg", MimeType: "image/jpeg"})
	require.NoError(t, err)
	require.NoError(t, s.SetAttachmentMeta(ctx, id, "_myclub_source", "group_https://x/lag.jpg"))

	got, err := s.AttachmentByMeta(ctx, "_myclub_source", "group_https://x/lag.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, id, got.ID)
	byName, _ := s.AttachmentByFileName(ctx, "lag.jpg")
	require.NotNil(t, byName)
	require.Equal(t, id, byName.ID)

	_ = s.AddAttachmentTag(ctx, id, "group")
	_ = s.AddAttachmentTag(ctx, id, "group")
	tags, _ := s.AttachmentTags(ctx, id)
	require.Len(t, tags, 1)
	_ = s.UpdateAttachmentCaption(ctx, id, "Laget 2024")

	post := newPost(t, s, "P12")
	_ = s.SetFeaturedImage(ctx, post, id)
	require.NoError(t, s.DeleteAttachment(ctx, id))
	p, _ := s.Post(ctx, post)
	require.Zero(t, p.FeaturedImageID, "featured image not cleared")
	_, ok, _ := s.AttachmentMeta(ctx, id, "_myclub_source")
	require.False(t, ok, "meta not cascaded")
}

func TestPosts_ByExternalID(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	id, _ := s.CreatePost(ctx, model.Post{Kind: model.PostKindNews, ExternalID: "n1", Title: "Hej"})
	p, err := s.PostByExternalID(ctx, model.PostKindNews, "n1")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, id, p.ID)

	p.Title = "Hej igen"
	require.NoError(t, s.UpdatePost(ctx, *p))
	list, _ := s.ListPosts(ctx, model.PostKindNews)
	require.Len(t, list, 1)
	require.Equal(t, "Hej igen", list[0].Title)

	miss, _ := s.PostByExternalID(ctx, model.PostKindGroup, "n1")
	require.Nil(t, miss, "kind must be part of the lookup")
}
