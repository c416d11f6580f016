package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-myclub-groups/internal/model"
	"go-myclub-groups/internal/sanitize"
)

// ErrEmptyUID 表示活动缺少 uid。
var ErrEmptyUID = errors.New("activity uid required")

const activityColumns = `uid, show_on_club_calendar, title, day, start_time, end_time, location,
        description, calendar_name, type, base_type, meet_up_time, meet_up_place`

// 日历排序：日期、开始、结束；同一时刻按写入顺序。
const activityOrder = `ORDER BY a.day, a.start_time, a.end_time, a.id`

// UpsertActivity 按 uid 新增或更新活动，返回是否发生变化。
//   - 不存在：插入，changed=true
//   - 已存在：比较受跟踪字段，无论是否有差异都整体覆盖，changed=有差异
//   - a.PostID 非零：顺带建立关联，新建的关联同样计为 changed
//
// a.Description 为原文，写入前按存储策略转义。
func (s *SQLite) UpsertActivity(ctx context.Context, a model.Activity, calendarVisible bool) (bool, error) {
	if a.UID == "" {
		return false, ErrEmptyUID
	}
	row := a
	row.ShowOnClubCalendar = calendarVisible
	row.Description = sanitize.Description(a.Description)

	cur, err := s.Activity(ctx, a.UID)
	if err != nil {
		return false, err
	}
	changed := false
	if cur == nil {
		_, err = s.db.ExecContext(ctx, `INSERT INTO activities(`+activityColumns+`)
            VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			row.UID, row.ShowOnClubCalendar, row.Title, row.Day, row.StartTime, row.EndTime, row.Location,
			row.Description, row.CalendarName, row.Type, row.BaseType, nullInt(row.MeetUpTime), row.MeetUpPlace)
		if err != nil {
			return false, fmt.Errorf("insert activity %s: %w", a.UID, err)
		}
		changed = true
	} else {
		changed = len(DiffActivity(*cur, row)) > 0
		_, err = s.db.ExecContext(ctx, `UPDATE activities SET show_on_club_calendar=?, title=?, day=?,
            start_time=?, end_time=?, location=?, description=?, calendar_name=?, type=?, base_type=?,
            meet_up_time=?, meet_up_place=? WHERE uid=?`,
			row.ShowOnClubCalendar, row.Title, row.Day, row.StartTime, row.EndTime, row.Location,
			row.Description, row.CalendarName, row.Type, row.BaseType, nullInt(row.MeetUpTime), row.MeetUpPlace, row.UID)
		if err != nil {
			return false, fmt.Errorf("update activity %s: %w", a.UID, err)
		}
	}
	if a.PostID != 0 {
		created, err := s.LinkToPost(ctx, a.PostID, a.UID)
		if err != nil {
			return changed, err
		}
		changed = changed || created
	}
	return changed, nil
}

// DiffActivity 返回两条活动在受跟踪字段上的差异字段名。
func DiffActivity(cur, next model.Activity) []string {
	var out []string
	cmp := func(name string, a, b string) {
		if a != b {
			out = append(out, name)
		}
	}
	cmp("title", cur.Title, next.Title)
	cmp("description", cur.Description, next.Description)
	cmp("day", cur.Day, next.Day)
	cmp("start_time", cur.StartTime, next.StartTime)
	cmp("end_time", cur.EndTime, next.EndTime)
	cmp("location", cur.Location, next.Location)
	cmp("calendar_name", cur.CalendarName, next.CalendarName)
	cmp("type", cur.Type, next.Type)
	cmp("base_type", cur.BaseType, next.BaseType)
	if !sameInt(cur.MeetUpTime, next.MeetUpTime) {
		out = append(out, "meet_up_time")
	}
	cmp("meet_up_place", cur.MeetUpPlace, next.MeetUpPlace)
	if cur.ShowOnClubCalendar != next.ShowOnClubCalendar {
		out = append(out, "show_on_club_calendar")
	}
	return out
}

// LinkToPost 建立内容与活动的关联；已存在时返回 false 且不写库。
func (s *SQLite) LinkToPost(ctx context.Context, postID int64, uid string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO activity_links(post_id, activity_uid) VALUES(?, ?)
        ON CONFLICT(post_id, activity_uid) DO NOTHING`, postID, uid)
	if err != nil {
		return false, fmt.Errorf("link post %d to %s: %w", postID, uid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link post %d to %s: %w", postID, uid, err)
	}
	return n > 0, nil
}

// UnlinkFromPost 删除关联；若活动已无任何关联且不在俱乐部日历展示，则一并删除活动。
// 活动行不存在时视为无需回收。
func (s *SQLite) UnlinkFromPost(ctx context.Context, postID int64, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM activity_links WHERE post_id=? AND activity_uid=?`, postID, uid); err != nil {
		return fmt.Errorf("unlink post %d from %s: %w", postID, uid, err)
	}
	_, err := s.collectActivity(ctx, uid)
	return err
}

// HideFromCalendar 取消日历展示；若活动同时没有关联则删除，返回是否删除。
func (s *SQLite) HideFromCalendar(ctx context.Context, uid string) (bool, error) {
	if _, err := s.db.ExecContext(ctx, `UPDATE activities SET show_on_club_calendar=0 WHERE uid=?`, uid); err != nil {
		return false, fmt.Errorf("hide activity %s: %w", uid, err)
	}
	return s.collectActivity(ctx, uid)
}

// collectActivity 在活动无关联且不在日历展示时删除它。
func (s *SQLite) collectActivity(ctx context.Context, uid string) (bool, error) {
	var links int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activity_links WHERE activity_uid=?`, uid).Scan(&links); err != nil {
		return false, fmt.Errorf("count links %s: %w", uid, err)
	}
	if links > 0 {
		return false, nil
	}
	var visible bool
	err := s.db.QueryRowContext(ctx, `SELECT show_on_club_calendar FROM activities WHERE uid=?`, uid).Scan(&visible)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read calendar flag %s: %w", uid, err)
	}
	if visible {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE uid=?`, uid); err != nil {
		return false, fmt.Errorf("delete activity %s: %w", uid, err)
	}
	return true, nil
}

// Activity 按 uid 查询，不存在时返回 nil, nil。
func (s *SQLite) Activity(ctx context.Context, uid string) (*model.Activity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE uid=?`, uid)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", uid, err)
	}
	return &a, nil
}

// CalendarActivities 返回俱乐部日历展示的全部活动。
func (s *SQLite) CalendarActivities(ctx context.Context) ([]model.Activity, error) {
	return s.queryActivities(ctx, `SELECT `+prefixed("a")+` FROM activities a
        WHERE a.show_on_club_calendar=1 `+activityOrder)
}

// CalendarUIDs 返回俱乐部日历展示的活动 uid 集合。
func (s *SQLite) CalendarUIDs(ctx context.Context) (map[string]struct{}, error) {
	uids, err := s.queryStrings(ctx, `SELECT uid FROM activities WHERE show_on_club_calendar=1`)
	if err != nil {
		return nil, fmt.Errorf("calendar uids: %w", err)
	}
	out := make(map[string]struct{}, len(uids))
	for _, u := range uids {
		out[u] = struct{}{}
	}
	return out, nil
}

// PostActivities 返回某内容关联的活动，排序同日历。
func (s *SQLite) PostActivities(ctx context.Context, postID int64) ([]model.Activity, error) {
	return s.queryActivities(ctx, `SELECT `+prefixed("a")+` FROM activities a
        JOIN activity_links l ON l.activity_uid = a.uid
        WHERE l.post_id=? `+activityOrder, postID)
}

// PostActivityUIDs 返回某内容关联的活动 uid。
func (s *SQLite) PostActivityUIDs(ctx context.Context, postID int64) ([]string, error) {
	uids, err := s.queryStrings(ctx, `SELECT activity_uid FROM activity_links WHERE post_id=? ORDER BY id`, postID)
	if err != nil {
		return nil, fmt.Errorf("post %d activity uids: %w", postID, err)
	}
	return uids, nil
}

// ActivityPostIDs 返回关联到某活动的内容 id。
func (s *SQLite) ActivityPostIDs(ctx context.Context, uid string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT post_id FROM activity_links WHERE activity_uid=? ORDER BY id`, uid)
	if err != nil {
		return nil, fmt.Errorf("activity %s post ids: %w", uid, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post ids: %w", err)
	}
	return out, nil
}

func (s *SQLite) queryActivities(ctx context.Context, q string, args ...any) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()
	var out []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activities: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

func (s *SQLite) queryStrings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(sc scanner) (model.Activity, error) {
	var a model.Activity
	var meetUp sql.NullInt64
	err := sc.Scan(&a.UID, &a.ShowOnClubCalendar, &a.Title, &a.Day, &a.StartTime, &a.EndTime, &a.Location,
		&a.Description, &a.CalendarName, &a.Type, &a.BaseType, &meetUp, &a.MeetUpPlace)
	if err != nil {
		return a, err
	}
	if meetUp.Valid {
		v := int(meetUp.Int64)
		a.MeetUpTime = &v
	}
	return a, nil
}

// prefixed 为列清单加上表别名。
func prefixed(alias string) string {
	return alias + `.uid, ` + alias + `.show_on_club_calendar, ` + alias + `.title, ` + alias + `.day, ` +
		alias + `.start_time, ` + alias + `.end_time, ` + alias + `.location, ` + alias + `.description, ` +
		alias + `.calendar_name, ` + alias + `.type, ` + alias + `.base_type, ` + alias + `.meet_up_time, ` +
		alias + `.meet_up_place`
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
