// 包 export 负责导出：将日历或某个内容的活动写为 JSON 文件。
package export

import (
	"context"
	"fmt"
	"time"

	"go-myclub-groups/internal/store"
)

// CalendarJSON 导出俱乐部日历中展示的全部活动（带缩进格式）。
func CalendarJSON(ctx context.Context, s *store.SQLite, path string) error {
	acts, err := s.CalendarActivities(ctx)
	if err != nil {
		return fmt.Errorf("list calendar activities: %w", err)
	}
	return WriteActivities(acts, path, time.Now())
}

// PostJSON 导出关联到 postID 的活动。
func PostJSON(ctx context.Context, s *store.SQLite, postID int64, path string) error {
	p, err := s.Post(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("post %d not found", postID)
	}
	acts, err := s.PostActivities(ctx, postID)
	if err != nil {
		return fmt.Errorf("list post activities: %w", err)
	}
	return WriteActivities(acts, path, time.Now())
}
