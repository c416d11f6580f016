package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-myclub-groups/internal/model"
)

const attachmentColumns = `a.id, a.filename, a.path, a.medium_path, a.mime_type, a.caption, a.created_at`

// InsertAttachment 登记媒体文件并返回新 id。
func (s *SQLite) InsertAttachment(ctx context.Context, a model.Attachment) (int64, error) {
	created := a.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO attachments(filename, path, medium_path, mime_type, caption, created_at)
        VALUES(?,?,?,?,?,?)`, a.FileName, a.Path, a.MediumPath, a.MimeType, a.Caption, created)
	if err != nil {
		return 0, fmt.Errorf("insert attachment %s: %w", a.FileName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert attachment %s: %w", a.FileName, err)
	}
	return id, nil
}

// Attachment 按 id 查询，不存在时返回 nil, nil。
func (s *SQLite) Attachment(ctx context.Context, id int64) (*model.Attachment, error) {
	return s.attachmentWhere(ctx, `SELECT `+attachmentColumns+` FROM attachments a WHERE a.id=?`, id)
}

// AttachmentByMeta 按元数据键值查找（最早登记的优先）。
func (s *SQLite) AttachmentByMeta(ctx context.Context, key, value string) (*model.Attachment, error) {
	return s.attachmentWhere(ctx, `SELECT `+attachmentColumns+` FROM attachments a
        JOIN attachment_meta m ON m.attachment_id = a.id
        WHERE m.meta_key=? AND m.meta_value=? ORDER BY a.id LIMIT 1`, key, value)
}

// AttachmentByFileName 按规范化文件名查找（最早登记的优先）。
func (s *SQLite) AttachmentByFileName(ctx context.Context, name string) (*model.Attachment, error) {
	return s.attachmentWhere(ctx, `SELECT `+attachmentColumns+` FROM attachments a
        WHERE a.filename=? ORDER BY a.id LIMIT 1`, name)
}

// SetAttachmentMeta 写入或覆盖一条元数据。
func (s *SQLite) SetAttachmentMeta(ctx context.Context, id int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attachment_meta(attachment_id, meta_key, meta_value) VALUES(?,?,?)
        ON CONFLICT(attachment_id, meta_key) DO UPDATE SET meta_value=excluded.meta_value`, id, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s of attachment %d: %w", key, id, err)
	}
	return nil
}

// AttachmentMeta 读取一条元数据，ok 表示是否存在。
func (s *SQLite) AttachmentMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT meta_value FROM attachment_meta WHERE attachment_id=? AND meta_key=?`, id, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s of attachment %d: %w", key, id, err)
	}
	return v, true, nil
}

// UpdateAttachmentCaption 更新说明文字。
func (s *SQLite) UpdateAttachmentCaption(ctx context.Context, id int64, caption string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE attachments SET caption=? WHERE id=?`, caption, id); err != nil {
		return fmt.Errorf("update caption of attachment %d: %w", id, err)
	}
	return nil
}

// AddAttachmentTag 为附件添加类型标签（重复添加无副作用）。
func (s *SQLite) AddAttachmentTag(ctx context.Context, id int64, tag string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attachment_tags(attachment_id, tag) VALUES(?, ?)
        ON CONFLICT(attachment_id, tag) DO NOTHING`, id, tag)
	if err != nil {
		return fmt.Errorf("tag attachment %d: %w", id, err)
	}
	return nil
}

// AttachmentTags 返回附件的类型标签。
func (s *SQLite) AttachmentTags(ctx context.Context, id int64) ([]string, error) {
	tags, err := s.queryStrings(ctx, `SELECT tag FROM attachment_tags WHERE attachment_id=? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("attachment %d tags: %w", id, err)
	}
	return tags, nil
}

// DeleteAttachment 删除附件记录；元数据/标签级联删除，引用它的特色图片置空。
func (s *SQLite) DeleteAttachment(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete attachment %d: %w", id, err)
	}
	return nil
}

func (s *SQLite) attachmentWhere(ctx context.Context, q string, args ...any) (*model.Attachment, error) {
	var a model.Attachment
	var created sql.NullTime
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&a.ID, &a.FileName, &a.Path, &a.MediumPath, &a.MimeType, &a.Caption, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	a.CreatedAt = created.Time
	return &a, nil
}
