package model

// 以下为 MyClub v3 external API 的响应结构，仅保留同步用到的字段。

// ActivityPayload 为远端返回的单条活动。
type ActivityPayload struct {
	UID          string `json:"uid" validate:"required"`
	Title        string `json:"title"`
	Day          string `json:"day" validate:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"omitempty,datetime=15:04:05"`
	EndTime      string `json:"end_time" validate:"omitempty,datetime=15:04:05"`
	Location     string `json:"location"`
	Description  string `json:"description"`
	CalendarName string `json:"calendar_name"`
	Type         string `json:"type"`
	BaseType     string `json:"base_type"`
	MeetUpTime   *int   `json:"meet_up_time"`
	MeetUpPlace  string `json:"meet_up_place"`
}

// Calendar 为 calendar/ 与 teams/{id}/calendar/ 的响应。
type Calendar struct {
	Count   int               `json:"count"`
	Results []ActivityPayload `json:"results"`
}

// MenuTeam 为菜单中的一个队伍条目。
type MenuTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MenuSection 为菜单分组（如“青少年”“成人”）。
type MenuSection struct {
	Name  string     `json:"name"`
	Teams []MenuTeam `json:"teams"`
}

// Menu 为 team_menu/ 与 team_menu/other_teams/ 的响应。
type Menu struct {
	Sections []MenuSection `json:"sections"`
	Teams    []MenuTeam    `json:"teams"`
}

// RemoteImage 为远端图片描述；Raw.URL 为原图地址。
type RemoteImage struct {
	Raw struct {
		URL string `json:"url"`
	} `json:"raw"`
	Caption string `json:"caption"`
}

// URL 返回原图地址（nil 安全）。
func (i *RemoteImage) URL() string {
	if i == nil {
		return ""
	}
	return i.Raw.URL
}

// Member 为队伍成员。
type Member struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Role  string       `json:"role"`
	Email string       `json:"email"`
	Phone string       `json:"phone"`
	Age   string       `json:"age"`
	Image *RemoteImage `json:"image"`
}

// Members 为 teams/{id}/members/ 的响应。
type Members struct {
	Results []Member `json:"results"`
}

// Group 为 teams/{id}/info/ 的响应，Members/Activities 由后续两次请求补齐。
type Group struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ContactName string            `json:"contact_name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	InfoText    string            `json:"info_text"`
	Image       *RemoteImage      `json:"team_image"`
	Members     []Member          `json:"members"`
	Activities  []ActivityPayload `json:"activities"`
}

// NewsItem 为一条新闻。
type NewsItem struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Ingress       string       `json:"ingress"`
	Text          string       `json:"text"`
	PublishedDate string       `json:"published_date"`
	Image         *RemoteImage `json:"image"`
	ImageCaption  string       `json:"image_caption"`
}

// News 为 news/ 的响应。
type News struct {
	Results []NewsItem `json:"results"`
}
