package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"amd/internal/rootapi"
	"amd/pkg/logx"
	"amd/pkg/timex"
)

// The presence report goes out at 18:00; members who checked in after 17:45
// count as late.
const (
	labReportHour    = 18
	labThresholdHour = 17
	labThresholdMin  = 45
	labTaskID        = "lab-attendance-check"
)

// LabAttendanceConfig names the channel the presence report is sent to.
type LabAttendanceConfig struct {
	ReportChannelID string
}

// LabAttendanceCheck is the daily presence report: who showed up to the
// lab, who was late, who never came.
type LabAttendanceCheck struct {
	cfg  LabAttendanceConfig
	root RootClient
	msgr Messenger
	loc  *time.Location
	log  logx.Logger
	now  func() time.Time
}

func NewLabAttendanceCheck(cfg LabAttendanceConfig, root RootClient, msgr Messenger, loc *time.Location, log logx.Logger) *LabAttendanceCheck {
	return &LabAttendanceCheck{
		cfg:  cfg,
		root: root,
		msgr: msgr,
		loc:  loc,
		log:  log.With(logx.String("task", labTaskID)),
		now:  time.Now,
	}
}

func (t *LabAttendanceCheck) Name() string { return labTaskID }

func (t *LabAttendanceCheck) RunIn() time.Duration {
	return timex.Until(t.now(), t.loc, labReportHour, 0)
}

func (t *LabAttendanceCheck) Run(ctx context.Context) error {
	records, err := t.root.AttendanceToday(ctx)
	if err != nil {
		return err
	}

	threshold := timex.LastOccurrence(t.now(), t.loc, labThresholdHour, labThresholdMin)

	var absent, late []rootapi.AttendanceRecord
	for _, rec := range records {
		if !rec.IsPresent || rec.TimeIn == "" {
			absent = append(absent, rec)
			continue
		}
		in, err := t.parseTimeIn(rec.TimeIn)
		if err != nil {
			// Present but with an unreadable check-in time: count as on
			// time rather than dropping the record.
			t.log.Warn("unparseable check-in time", logx.String("member", rec.Name), logx.Err(err))
			continue
		}
		if in.After(threshold) {
			late = append(late, rec)
		}
	}

	if len(absent) == len(records) {
		return t.sendLabClosed(ctx)
	}
	return t.sendReport(ctx, absent, late, len(records))
}

// parseTimeIn converts Root's "HH:MM:SS[.fraction]" wall-clock string to an
// instant today in the organizational timezone.
func (t *LabAttendanceCheck) parseTimeIn(raw string) (time.Time, error) {
	clock, _, _ := strings.Cut(raw, ".")
	parsed, err := time.Parse("15:04:05", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("time-in %q: %w", raw, err)
	}
	local := t.now().In(t.loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0, t.loc), nil
}

func (t *LabAttendanceCheck) sendLabClosed(ctx context.Context) error {
	embed := t.baseEmbed()
	embed.Color = colorRed
	embed.Description = "Uh-oh, seems like the lab is closed today! 🏖️ Everyone is absent!"
	return t.msgr.SendEmbed(ctx, t.cfg.ReportChannelID, embed)
}

func (t *LabAttendanceCheck) sendReport(ctx context.Context, absent, late []rootapi.AttendanceRecord, total int) error {
	present := total - len(absent)
	var pct float64
	if total > 0 {
		pct = float64(present) / float64(total) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Stats\n- Present: %d (%.0f%%)\n- Absent: %d\n- Late: %d\n\n",
		present, pct, len(absent), len(late))
	writeAttendanceList(&b, "Absent", absent)
	writeAttendanceList(&b, "Late", late)

	embed := t.baseEmbed()
	embed.Description = b.String()
	switch {
	case pct > 75:
		embed.Color = colorDarkGreen
	case pct > 50:
		embed.Color = colorGold
	default:
		embed.Color = colorRed
	}
	return t.msgr.SendEmbed(ctx, t.cfg.ReportChannelID, embed)
}

func (t *LabAttendanceCheck) baseEmbed() *discordgo.MessageEmbed {
	now := t.now()
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Presence Report - %s", now.In(t.loc).Format("January 02, 2006")),
		URL:   titleURL,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    botName,
			URL:     authorURL,
			IconURL: t.msgr.BotAvatarURL(),
		},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// writeAttendanceList renders one section (Absent/Late) grouped by year 1-3.
func writeAttendanceList(b *strings.Builder, title string, list []rootapi.AttendanceRecord) {
	if len(list) == 0 {
		fmt.Fprintf(b, "**%s**\nNo one is %s today! 🎉\n\n", title, strings.ToLower(title))
		return
	}

	byYear := make(map[int][]string)
	for _, rec := range list {
		if rec.Year >= 1 && rec.Year <= 3 {
			byYear[rec.Year] = append(byYear[rec.Year], rec.Name)
		}
	}

	fmt.Fprintf(b, "# %s\n", title)
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		fmt.Fprintf(b, "### Year %d\n", y)
		for _, name := range byYear[y] {
			fmt.Fprintf(b, "- %s\n", name)
		}
		b.WriteString("\n")
	}
}
