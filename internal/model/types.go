// 包 model 定义本地存储的数据模型（活动/关联/内容/附件/选项）。
package model

import "time"

// Activity 表示一条从 MyClub 同步下来的日历活动，以远端 UID 为唯一标识。
// Description 保存的是已转义的存储形态（换行已转为 <br />）。
type Activity struct {
	UID                string `json:"uid"`
	ShowOnClubCalendar bool   `json:"show_on_club_calendar"`
	Title              string `json:"title"`
	Day                string `json:"day"`        // YYYY-MM-DD
	StartTime          string `json:"start_time"` // HH:MM:SS
	EndTime            string `json:"end_time"`
	Location           string `json:"location"`
	Description        string `json:"description"`
	CalendarName       string `json:"calendar_name"`
	Type               string `json:"type"`
	BaseType           string `json:"base_type"`
	MeetUpTime         *int   `json:"meet_up_time,omitempty"`
	MeetUpPlace        string `json:"meet_up_place"`

	// PostID 非零时，写入活动后会顺带建立与该内容的关联；不落库。
	PostID int64 `json:"-"`
}

// PostKind 区分宿主内容的类型。
type PostKind string

const (
	PostKindGroup PostKind = "group"
	PostKindNews  PostKind = "news"
	PostKindPage  PostKind = "page"
)

// Post 为宿主平台的内容条目。
type Post struct {
	ID              int64     `json:"id"`
	Kind            PostKind  `json:"kind"`
	ExternalID      string    `json:"external_id,omitempty"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	FeaturedImageID int64     `json:"featured_image_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Attachment 为媒体库中的一个本地文件。
type Attachment struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"filename"`
	Path       string    `json:"path"`
	MediumPath string    `json:"medium_path,omitempty"`
	MimeType   string    `json:"mime_type"`
	Caption    string    `json:"caption"`
	CreatedAt  time.Time `json:"created_at"`
}

// Option 为扁平的键值设置项。
type Option struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Autoload bool   `json:"autoload"`
}

// CalendarStats 为日历导出的统计信息。
type CalendarStats struct {
	ActivitiesTotal int       `json:"activities_total"`
	FirstDay        string    `json:"first_day,omitempty"`
	LastDay         string    `json:"last_day,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CalendarExport 为 calendar.json 的顶层结构。
type CalendarExport struct {
	Stats      CalendarStats `json:"stats"`
	Activities []Activity    `json:"activities"`
}
