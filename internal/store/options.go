package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-myclub-groups/internal/model"
)

// OptionAPIKey 保存 MyClub API 凭据的设置项。
const OptionAPIKey = "myclub_groups_api_key"

// Option 读取设置项，不存在时返回 def。
func (s *SQLite) Option(ctx context.Context, name, def string) (string, error) {
	o, err := s.option(ctx, name)
	if err != nil {
		return "", err
	}
	if o == nil {
		return def, nil
	}
	return o.Value, nil
}

// AddOption 仅在设置项不存在时创建，返回是否创建。
func (s *SQLite) AddOption(ctx context.Context, o model.Option) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO options(name, value, autoload) VALUES(?,?,?)
        ON CONFLICT(name) DO NOTHING`, o.Name, o.Value, o.Autoload)
	if err != nil {
		return false, fmt.Errorf("add option %s: %w", o.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add option %s: %w", o.Name, err)
	}
	return n > 0, nil
}

// PutOption 写入设置项：不存在则创建，存在则更新。
// skipUnchanged 为 true 且值与 autoload 均未变化时不写库。返回是否写入。
func (s *SQLite) PutOption(ctx context.Context, o model.Option, skipUnchanged bool) (bool, error) {
	cur, err := s.option(ctx, o.Name)
	if err != nil {
		return false, err
	}
	if cur == nil {
		return s.AddOption(ctx, o)
	}
	if skipUnchanged && cur.Value == o.Value && cur.Autoload == o.Autoload {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE options SET value=?, autoload=? WHERE name=?`, o.Value, o.Autoload, o.Name); err != nil {
		return false, fmt.Errorf("update option %s: %w", o.Name, err)
	}
	return true, nil
}

// DeleteOption 删除设置项。
func (s *SQLite) DeleteOption(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE name=?`, name); err != nil {
		return fmt.Errorf("delete option %s: %w", name, err)
	}
	return nil
}

// AutoloadOptions 返回 autoload 为真的全部设置项。
func (s *SQLite) AutoloadOptions(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM options WHERE autoload=1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan options: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options: %w", err)
	}
	return out, nil
}

func (s *SQLite) option(ctx context.Context, name string) (*model.Option, error) {
	o := model.Option{Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT value, autoload FROM options WHERE name=?`, name).Scan(&o.Value, &o.Autoload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get option %s: %w", name, err)
	}
	return &o, nil
}
