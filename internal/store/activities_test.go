package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-myclub-groups/internal/model"
)

func openTest(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newPost(t *testing.T, s *SQLite, title string) int64 {
	t.Helper()
	id, err := s.CreatePost(context.Background(), model.Post{Kind: model.PostKindGroup, Title: title})
	require.NoError(t, err)
	return id
}

func sample(uid string) model.Activity {
	meet := 30
	return model.Activity{
		UID:          uid,
		Title:        "Träning",
		Day:          "2024-05-01",
		StartTime:    "17:00:00",
		EndTime:      "18:30:00",
		Location:     "Plan 1",
		Description:  "Ta med boll\noch vatten",
		CalendarName: "P12",
		Type:         "Träning",
		BaseType:     "training",
		MeetUpTime:   &meet,
		MeetUpPlace:  "Klubbhuset",
	}
}

func countActivities(t *testing.T, s *SQLite, uid string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(1) FROM activities WHERE uid=?`, uid).Scan(&n))
	return n
}

func TestUpsertActivity_NewUIDIsChanged(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	changed, err := s.UpsertActivity(ctx, sample("u1"), false)
	require.NoError(t, err)
	require.True(t, changed, "new uid must report changed")
	require.Equal(t, 1, countActivities(t, s, "u1"))

	got, err := s.Activity(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Ta med boll&lt;br /&gt;\noch vatten", got.Description)
	require.NotNil(t, got.MeetUpTime)
	require.Equal(t, 30, *got.MeetUpTime)
}

func TestUpsertActivity_IdenticalIsUnchanged(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_, err := s.UpsertActivity(ctx, sample("u1"), true)
	require.NoError(t, err)
	before, _ := s.Activity(ctx, "u1")

	changed, err := s.UpsertActivity(ctx, sample("u1"), true)
	require.NoError(t, err)
	require.False(t, changed, "identical upsert must not report changed")

	after, _ := s.Activity(ctx, "u1")
	require.Empty(t, DiffActivity(*before, *after))
	require.Equal(t, 1, countActivities(t, s, "u1"))
}

func TestUpsertActivity_TrackedFieldDiff(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_, _ = s.UpsertActivity(ctx, sample("u1"), false)

	a := sample("u1")
	a.Location = "Plan 2"
	changed, err := s.UpsertActivity(ctx, a, false)
	require.NoError(t, err)
	require.True(t, changed)
	got, _ := s.Activity(ctx, "u1")
	require.Equal(t, "Plan 2", got.Location)

	// 仅日历标记变化也算变化
	changed, _ = s.UpsertActivity(ctx, a, true)
	require.True(t, changed, "calendar flag change must report changed")

	// meet_up_time 从有到无
	a.MeetUpTime = nil
	changed, _ = s.UpsertActivity(ctx, a, true)
	require.True(t, changed, "meet_up_time removal must report changed")
}

func TestUpsertActivity_UntrackedFieldIgnored(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	_, _ = s.UpsertActivity(ctx, sample("u1"), false)
	a := sample("u1")
	// ShowOnClubCalendar 由参数决定，结构体上的值不参与
	a.ShowOnClubCalendar = true
	changed, err := s.UpsertActivity(ctx, a, false)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestUpsertActivity_NewLinkReportsChanged(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	post := newPost(t, s, "P12")
	_, _ = s.UpsertActivity(ctx, sample("u1"), false)

	a := sample("u1")
	a.PostID = post
	changed, err := s.UpsertActivity(ctx, a, false)
	require.NoError(t, err)
	require.True(t, changed, "new link must report changed")

	changed, _ = s.UpsertActivity(ctx, a, false)
	require.False(t, changed, "existing link with identical fields must not report changed")
}

func TestUpsertActivity_EmptyUID(t *testing.T) {
	s := openTest(t)
	_, err := s.UpsertActivity(context.Background(), model.Activity{}, false)
	require.ErrorIs(t, err, ErrEmptyUID)
}

func TestLinkToPost_Idempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	post := newPost(t, s, "P12")
	_, _ = s.UpsertActivity(ctx, sample("u1"), false)

	created, err := s.LinkToPost(ctx, post, "u1")
	require.NoError(t, err)
	require.True(t, created)
	created, err = s.LinkToPost(ctx, post, "u1")
	require.NoError(t, err)
	require.False(t, created)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(1) FROM activity_links WHERE post_id=? AND activity_uid=?`, post, "u1").Scan(&n))
	require.Equal(t, 1, n)
}

func TestUnlinkFromPost_CollectsHiddenActivity(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p1 := newPost(t, s, "P12")
	p2 := newPost(t, s, "F12")

	hidden := sample("hidden")
	hidden.PostID = p1
	_, _ = s.UpsertActivity(ctx, hidden, false)
	_, _ = s.LinkToPost(ctx, p2, "hidden")

	visible := sample("visible")
	visible.PostID = p1
	_, _ = s.UpsertActivity(ctx, visible, true)

	// 仍有另一条关联：保留
	require.NoError(t, s.UnlinkFromPost(ctx, p1, "hidden"))
	require.Equal(t, 1, countActivities(t, s, "hidden"))
	// 最后一条关联：删除
	require.NoError(t, s.UnlinkFromPost(ctx, p2, "hidden"))
	require.Zero(t, countActivities(t, s, "hidden"))
	// 日历展示中的活动：保留
	require.NoError(t, s.UnlinkFromPost(ctx, p1, "visible"))
	require.Equal(t, 1, countActivities(t, s, "visible"))
	// 活动不存在：安全返回
	require.NoError(t, s.UnlinkFromPost(ctx, p1, "missing"))
}

func TestHideFromCalendar(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	post := newPost(t, s, "P12")
	_, _ = s.UpsertActivity(ctx, sample("lonely"), true)
	linked := sample("linked")
	linked.PostID = post
	_, _ = s.UpsertActivity(ctx, linked, true)

	removed, err := s.HideFromCalendar(ctx, "lonely")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.HideFromCalendar(ctx, "linked")
	require.NoError(t, err)
	require.False(t, removed)
	got, _ := s.Activity(ctx, "linked")
	require.NotNil(t, got)
	require.False(t, got.ShowOnClubCalendar)
}

func TestListings_OrderedByDayAndTime(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	post := newPost(t, s, "P12")
	add := func(uid, day, start, end string) {
		a := sample(uid)
		a.Day, a.StartTime, a.EndTime = day, start, end
		a.PostID = post
		_, err := s.UpsertActivity(ctx, a, true)
		require.NoError(t, err, uid)
	}
	add("c", "2024-05-02", "10:00:00", "11:00:00")
	add("tie1", "2024-05-01", "17:00:00", "18:00:00")
	add("a", "2024-05-01", "09:00:00", "10:00:00")
	add("tie2", "2024-05-01", "17:00:00", "18:00:00")
	add("b", "2024-05-01", "17:00:00", "17:30:00")
	want := []string{"a", "b", "tie1", "tie2", "c"}

	cal, err := s.CalendarActivities(ctx)
	require.NoError(t, err)
	forPost, err := s.PostActivities(ctx, post)
	require.NoError(t, err)
	for name, list := range map[string][]model.Activity{"calendar": cal, "post": forPost} {
		got := make([]string, 0, len(list))
		for _, a := range list {
			got = append(got, a.UID)
		}
		require.Equal(t, want, got, name)
	}

	uids, _ := s.CalendarUIDs(ctx)
	require.Len(t, uids, 5)
	postUIDs, _ := s.PostActivityUIDs(ctx, post)
	require.Len(t, postUIDs, 5)
	require.Equal(t, "c", postUIDs[0])
	ids, _ := s.ActivityPostIDs(ctx, "a")
	require.Equal(t, []int64{post}, ids)
}

func TestDeletePost_CascadesLinks(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	post := newPost(t, s, "P12")
	a := sample("u1")
	a.PostID = post
	_, _ = s.UpsertActivity(ctx, a, true)

	require.NoError(t, s.DeletePost(ctx, post))
	uids, _ := s.PostActivityUIDs(ctx, post)
	require.Empty(t, uids)

	// 删除活动同样级联
	p2 := newPost(t, s, "F12")
	_, _ = s.LinkToPost(ctx, p2, "u1")
	_, err := s.db.Exec(`DELETE FROM activities WHERE uid='u1'`)
	require.NoError(t, err)
	ids, _ := s.ActivityPostIDs(ctx, "u1")
	require.Empty(t, ids)
}
