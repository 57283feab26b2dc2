package schedule

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/schedule-from-videos/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 24

type RenderOptions struct {
	UserID   string
	Now      time.Time
	Location *time.Location
}

type broadcast struct {
	start    time.Time
	duration time.Duration
	raw      domain.ScheduleEntry
}

func renderView(entries []domain.ScheduleEntry, opts RenderOptions, s styles) string {
	header := fmt.Sprintf("broadcasts: %d", len(entries))
	if opts.UserID != "" {
		header = fmt.Sprintf("user: %s  %s", opts.UserID, header)
	}
	lines := []string{
		s.title.Render("Broadcast Schedule"),
		s.header.Render(header),
	}

	if len(entries) == 0 {
		lines = append(lines, s.empty.Render("No archived broadcasts found."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	parsed := make([]broadcast, 0, len(entries))
	var longest, total time.Duration
	for _, entry := range entries {
		b := parseEntry(entry, loc)
		if b.duration > longest {
			longest = b.duration
		}
		total += b.duration
		parsed = append(parsed, b)
	}

	body := make([]string, 0, len(parsed))
	for _, b := range parsed {
		body = append(body, broadcastLine(b, longest, opts.Now, s))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, body...)))
	lines = append(lines, s.section.Render(weekdayLines(parsed, s)))
	lines = append(lines, s.header.Render(fmt.Sprintf("total airtime: %s", formatDuration(total))))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func parseEntry(entry domain.ScheduleEntry, loc *time.Location) broadcast {
	b := broadcast{raw: entry}
	if start, err := time.Parse(time.RFC3339, entry.CreatedAt); err == nil {
		b.start = start.In(loc)
	}
	if d, err := time.ParseDuration(entry.Duration); err == nil && d > 0 {
		b.duration = d
	}
	return b
}

func broadcastLine(b broadcast, longest time.Duration, now time.Time, s styles) string {
	if b.start.IsZero() {
		return s.warning.Render(fmt.Sprintf("unparsed start %q (%s)", b.raw.CreatedAt, b.raw.Duration))
	}

	percent := 0.0
	if longest > 0 {
		percent = 100 * b.duration.Seconds() / longest.Seconds()
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.day.Render(b.start.Format("Mon")),
		" ",
		s.start.Render(b.start.Format("02 Jan 15:04")),
		" ",
		renderBar(percent, barWidth, s),
		" ",
		s.meta.Render(fmt.Sprintf("%s %s", formatDuration(b.duration), relative(b.start, now))),
	)
}

func weekdayLines(broadcasts []broadcast, s styles) string {
	var counts [7]int
	most := 0
	for _, b := range broadcasts {
		if b.start.IsZero() {
			continue
		}
		day := b.start.Weekday()
		counts[day]++
		if counts[day] > most {
			most = counts[day]
		}
	}

	lines := []string{s.title.Render("By weekday")}
	// Monday first.
	for i := 1; i <= 7; i++ {
		day := time.Weekday(i % 7)
		percent := 0.0
		if most > 0 {
			percent = 100 * float64(counts[day]) / float64(most)
		}
		lines = append(lines, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.day.Render(day.String()[:3]),
			" ",
			renderBar(percent, barWidth/2, s),
			" ",
			s.meta.Render(fmt.Sprintf("%d", counts[day])),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	d = d.Round(time.Minute)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", hours, minutes)
}

func relative(start, now time.Time) string {
	if now.IsZero() || start.After(now) {
		return ""
	}

	elapsed := now.Sub(start)
	if elapsed < 24*time.Hour {
		hours := int(math.Ceil(elapsed.Hours()))
		if hours <= 1 {
			return "(1 hour ago)"
		}
		return fmt.Sprintf("(%d hours ago)", hours)
	}

	days := int(elapsed.Hours() / 24)
	if days == 1 {
		return "(1 day ago)"
	}
	return fmt.Sprintf("(%d days ago)", days)
}
