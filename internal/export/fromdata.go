package export

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"go-myclub-groups/internal/model"
)

// WriteActivities 将已排序的活动写成 JSON，附带数量与日期范围统计。
func WriteActivities(acts []model.Activity, path string, now time.Time) error {
	if acts == nil {
		acts = []model.Activity{}
	}
	st := model.CalendarStats{
		ActivitiesTotal: len(acts),
		UpdatedAt:       now,
	}
	// 输入按日期升序
	if len(acts) > 0 {
		st.FirstDay = acts[0].Day
		st.LastDay = acts[len(acts)-1].Day
	}
	out := model.CalendarExport{Stats: st, Activities: acts}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
