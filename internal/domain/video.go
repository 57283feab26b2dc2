package domain

const VideoTypeArchive = "archive"

type Video struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
	Duration  string `json:"duration"`
	Type      string `json:"type"`
}

type Pagination struct {
	Cursor string `json:"cursor,omitempty"`
}

// VideoPage is one page of the Helix video list.
type VideoPage struct {
	Data       []Video    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type ScheduleEntry struct {
	CreatedAt string `json:"created_at"`
	Duration  string `json:"duration"`
}

// ScheduleFromVideos keeps archived broadcasts only, in input order.
func ScheduleFromVideos(videos []Video) []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, len(videos))
	for _, video := range videos {
		if video.Type != VideoTypeArchive {
			continue
		}
		entries = append(entries, ScheduleEntry{
			CreatedAt: video.CreatedAt,
			Duration:  video.Duration,
		})
	}
	return entries
}
