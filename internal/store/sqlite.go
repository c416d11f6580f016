// 包 store 提供存储实现（SQLite），包含表迁移/拆除与各表读写。
// 所有表共用一个连接：活动/关联、宿主内容、媒体库、设置项。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
// 不使用事务：多语句操作（如写活动后建关联）不是原子的。
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite 打开 SQLite 数据库、开启外键并执行幂等迁移。
func OpenSQLite(path string) (*SQLite, error) {
	// 说明：modernc sqlite 的 DSN 可带 _pragma 参数，新建的连接同样会开启外键
	dsn := path
	if !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// 单连接：PRAGMA foreign_keys 是连接级设置
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &SQLite{db: db, now: time.Now}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// 建表顺序即依赖顺序；拆除时反向。
var schema = []string{
	`CREATE TABLE IF NOT EXISTS options (
        name TEXT PRIMARY KEY,
        value TEXT NOT NULL DEFAULT '',
        autoload INTEGER NOT NULL DEFAULT 1
    );`,
	`CREATE TABLE IF NOT EXISTS attachments (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        filename TEXT NOT NULL DEFAULT '',
        path TEXT NOT NULL DEFAULT '',
        medium_path TEXT NOT NULL DEFAULT '',
        mime_type TEXT NOT NULL DEFAULT '',
        caption TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMP
    );`,
	`CREATE INDEX IF NOT EXISTS attachments_filename ON attachments(filename);`,
	`CREATE TABLE IF NOT EXISTS attachment_meta (
        attachment_id INTEGER NOT NULL,
        meta_key TEXT NOT NULL,
        meta_value TEXT NOT NULL DEFAULT '',
        PRIMARY KEY (attachment_id, meta_key),
        FOREIGN KEY (attachment_id) REFERENCES attachments(id) ON DELETE CASCADE
    );`,
	`CREATE INDEX IF NOT EXISTS attachment_meta_lookup ON attachment_meta(meta_key, meta_value);`,
	`CREATE TABLE IF NOT EXISTS attachment_tags (
        attachment_id INTEGER NOT NULL,
        tag TEXT NOT NULL,
        PRIMARY KEY (attachment_id, tag),
        FOREIGN KEY (attachment_id) REFERENCES attachments(id) ON DELETE CASCADE
    );`,
	`CREATE TABLE IF NOT EXISTS posts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        kind TEXT NOT NULL DEFAULT 'page',
        external_id TEXT NOT NULL DEFAULT '',
        title TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL DEFAULT '',
        featured_image_id INTEGER REFERENCES attachments(id) ON DELETE SET NULL,
        created_at TIMESTAMP,
        updated_at TIMESTAMP
    );`,
	`CREATE INDEX IF NOT EXISTS posts_external ON posts(kind, external_id);`,
	`CREATE TABLE IF NOT EXISTS activities (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        uid TEXT NOT NULL UNIQUE,
        show_on_club_calendar INTEGER NOT NULL DEFAULT 0,
        title TEXT NOT NULL DEFAULT '',
        day TEXT NOT NULL DEFAULT '',
        start_time TEXT NOT NULL DEFAULT '',
        end_time TEXT NOT NULL DEFAULT '',
        location TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        calendar_name TEXT NOT NULL DEFAULT '',
        type TEXT NOT NULL DEFAULT '',
        meet_up_time INTEGER,
        meet_up_place TEXT NOT NULL DEFAULT ''
    );`,
	`CREATE TABLE IF NOT EXISTS activity_links (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        post_id INTEGER NOT NULL,
        activity_uid TEXT NOT NULL,
        UNIQUE (post_id, activity_uid),
        FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE,
        FOREIGN KEY (activity_uid) REFERENCES activities(uid) ON DELETE CASCADE
    );`,
	`CREATE INDEX IF NOT EXISTS activity_links_uid ON activity_links(activity_uid);`,
}

// addedColumns 为建表之后追加的列，旧库升级时补齐（只增不减）。
var addedColumns = []struct{ table, column, ddl string }{
	{"activities", "base_type", `ALTER TABLE activities ADD COLUMN base_type TEXT NOT NULL DEFAULT ''`},
}

// Migrate 执行建表与加列，保持幂等，可在每次启动时调用。
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	for _, c := range addedColumns {
		ok, err := s.hasColumn(ctx, c.table, c.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.column, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS activities_calendar
        ON activities(show_on_club_calendar, day, start_time, end_time)`); err != nil {
		return fmt.Errorf("exec migrate: %w", err)
	}
	return nil
}

func (s *SQLite) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("scan table info %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Teardown 删除活动相关的两张表：先删 activity_links 再删 activities，遵循外键依赖。
// 宿主内容、媒体库与设置项不受影响。
func (s *SQLite) Teardown(ctx context.Context) error {
	tables := []string{"activity_links", "activities"}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}
