package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-myclub-groups/internal/model"
)

const postColumns = `id, kind, external_id, title, content, featured_image_id, created_at, updated_at`

// CreatePost 插入宿主内容并返回新 id。
func (s *SQLite) CreatePost(ctx context.Context, p model.Post) (int64, error) {
	if p.Kind == "" {
		p.Kind = model.PostKindPage
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO posts(kind, external_id, title, content, featured_image_id, created_at, updated_at)
        VALUES(?,?,?,?,?,?,?)`,
		string(p.Kind), p.ExternalID, p.Title, p.Content, nullID(p.FeaturedImageID), now, now)
	if err != nil {
		return 0, fmt.Errorf("insert post %q: %w", p.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert post %q: %w", p.Title, err)
	}
	return id, nil
}

// UpdatePost 更新标题与正文，不改动特色图片。
func (s *SQLite) UpdatePost(ctx context.Context, p model.Post) error {
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET title=?, content=?, updated_at=? WHERE id=?`,
		p.Title, p.Content, s.now(), p.ID)
	if err != nil {
		return fmt.Errorf("update post %d: %w", p.ID, err)
	}
	return nil
}

// DeletePost 删除内容，其活动关联随外键级联删除。
func (s *SQLite) DeletePost(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return nil
}

// Post 按 id 查询，不存在时返回 nil, nil。
func (s *SQLite) Post(ctx context.Context, id int64) (*model.Post, error) {
	return s.postWhere(ctx, `id=?`, id)
}

// PostByExternalID 按类型与远端 id 查询。
func (s *SQLite) PostByExternalID(ctx context.Context, kind model.PostKind, externalID string) (*model.Post, error) {
	return s.postWhere(ctx, `kind=? AND external_id=? ORDER BY id LIMIT 1`, string(kind), externalID)
}

// ListPosts 按 id 升序返回某类内容。
func (s *SQLite) ListPosts(ctx context.Context, kind model.PostKind) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts WHERE kind=? ORDER BY id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posts: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// SetFeaturedImage 设置特色图片，attachmentID 为 0 表示清除。
func (s *SQLite) SetFeaturedImage(ctx context.Context, postID, attachmentID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET featured_image_id=?, updated_at=? WHERE id=?`,
		nullID(attachmentID), s.now(), postID)
	if err != nil {
		return fmt.Errorf("set featured image of post %d: %w", postID, err)
	}
	return nil
}

func (s *SQLite) postWhere(ctx context.Context, where string, args ...any) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE `+where, args...)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

func scanPost(sc scanner) (model.Post, error) {
	var p model.Post
	var kind string
	var featured sql.NullInt64
	var createdAt, updatedAt sql.NullTime
	if err := sc.Scan(&p.ID, &kind, &p.ExternalID, &p.Title, &p.Content, &featured, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.Kind = model.PostKind(kind)
	p.FeaturedImageID = featured.Int64
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return p, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
