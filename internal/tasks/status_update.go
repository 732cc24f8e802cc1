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

// Status updates are due daily at 05:00; a valid update must have been
// posted since 20:00 the previous evening.
const (
	statusReportHour   = 5
	statusWindowHour   = 20
	statusFetchLimit   = 100
	statusUpdateTaskID = "status-update-check"
)

// Keywords every regular status update must contain (lowercased match).
var statusKeywords = []string{"namah shivaya", "regards"}

// StatusUpdateConfig names the channels and exemptions for the daily check.
type StatusUpdateConfig struct {
	// GroupChannelIDs are the channels members post updates to.
	GroupChannelIDs []string
	// ReportChannelID receives the report embed.
	ReportChannelID string
	// ExemptAuthorIDs may omit the greeting keywords; "regards" alone counts.
	ExemptAuthorIDs []string
}

// StatusUpdateCheck is the daily compliance task: who posted a status
// update since yesterday evening, who didn't, and how the streaks moved.
type StatusUpdateCheck struct {
	cfg  StatusUpdateConfig
	root RootClient
	msgr Messenger
	loc  *time.Location
	log  logx.Logger
	now  func() time.Time
}

func NewStatusUpdateCheck(cfg StatusUpdateConfig, root RootClient, msgr Messenger, loc *time.Location, log logx.Logger) *StatusUpdateCheck {
	return &StatusUpdateCheck{
		cfg:  cfg,
		root: root,
		msgr: msgr,
		loc:  loc,
		log:  log.With(logx.String("task", statusUpdateTaskID)),
		now:  time.Now,
	}
}

func (t *StatusUpdateCheck) Name() string { return statusUpdateTaskID }

func (t *StatusUpdateCheck) RunIn() time.Duration {
	return timex.Until(t.now(), t.loc, statusReportHour, 0)
}

func (t *StatusUpdateCheck) Run(ctx context.Context) error {
	updates, err := t.collectUpdates(ctx)
	if err != nil {
		return err
	}
	members, err := t.root.Members(ctx)
	if err != nil {
		return err
	}

	defaulters, compliant := t.categorize(members, updates)
	streaks := t.updateStreaks(ctx, compliant, defaulters)

	embed, err := t.buildReport(ctx, members, defaulters, streaks)
	if err != nil {
		return err
	}
	return t.msgr.SendEmbed(ctx, t.cfg.ReportChannelID, embed)
}

// collectUpdates fetches recent messages from every group channel and keeps
// the valid status updates. A channel fetch failure fails the whole run:
// proceeding would misreport an entire group as defaulters.
func (t *StatusUpdateCheck) collectUpdates(ctx context.Context) ([]*discordgo.Message, error) {
	validFrom := timex.LastOccurrence(t.now(), t.loc, statusWindowHour, 0)

	var updates []*discordgo.Message
	for _, channelID := range t.cfg.GroupChannelIDs {
		msgs, err := t.msgr.RecentMessages(ctx, channelID, statusFetchLimit)
		if err != nil {
			return nil, err
		}
		for _, msg := range msgs {
			if t.isValidUpdate(msg, validFrom) {
				updates = append(updates, msg)
			}
		}
	}
	return updates, nil
}

func (t *StatusUpdateCheck) isValidUpdate(msg *discordgo.Message, validFrom time.Time) bool {
	if msg == nil || msg.Author == nil {
		return false
	}
	if msg.Timestamp.Before(validFrom) {
		return false
	}

	content := strings.ToLower(msg.Content)
	hasKeywords := true
	for _, kw := range statusKeywords {
		if !strings.Contains(content, kw) {
			hasKeywords = false
			break
		}
	}
	if hasKeywords {
		return true
	}
	return t.isExempt(msg.Author.ID) && strings.Contains(content, "regards")
}

func (t *StatusUpdateCheck) isExempt(authorID string) bool {
	for _, id := range t.cfg.ExemptAuthorIDs {
		if id == authorID {
			return true
		}
	}
	return false
}

// categorize splits members into defaulters (grouped by group id) and
// compliant members, matched by the update's author id.
func (t *StatusUpdateCheck) categorize(members []rootapi.Member, updates []*discordgo.Message) (map[int][]rootapi.Member, []rootapi.Member) {
	senders := make(map[string]struct{}, len(updates))
	for _, msg := range updates {
		senders[msg.Author.ID] = struct{}{}
	}

	defaulters := make(map[int][]rootapi.Member)
	var compliant []rootapi.Member
	for _, m := range members {
		if _, ok := senders[m.DiscordID]; ok {
			compliant = append(compliant, m)
		} else {
			defaulters[m.GroupID] = append(defaulters[m.GroupID], m)
		}
	}
	return defaulters, compliant
}

// updateStreaks increments compliant members and resets defaulters,
// returning the post-mutation streak per member id. Mutation failures are
// logged and skipped so one bad member record never sinks the report.
func (t *StatusUpdateCheck) updateStreaks(ctx context.Context, compliant []rootapi.Member, defaulters map[int][]rootapi.Member) map[int]rootapi.Streak {
	streaks := make(map[int]rootapi.Streak)

	for _, m := range compliant {
		streak, err := t.root.IncrementStreak(ctx, m.ID)
		if err != nil {
			t.log.Warn("skipping streak increment", logx.String("member", m.Name), logx.Err(err))
			continue
		}
		streaks[m.ID] = streak
	}
	for _, group := range defaulters {
		for _, m := range group {
			streak, err := t.root.ResetStreak(ctx, m.ID)
			if err != nil {
				t.log.Warn("skipping streak reset", logx.String("member", m.Name), logx.Err(err))
				continue
			}
			streaks[m.ID] = streak
		}
	}
	return streaks
}

func (t *StatusUpdateCheck) buildReport(ctx context.Context, members []rootapi.Member, defaulters map[int][]rootapi.Member, updated map[int]rootapi.Streak) (*discordgo.MessageEmbed, error) {
	allTimeHigh, allTimeMembers, currentHigh, currentMembers, err := t.leaderboard(ctx, members)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("# Leaderboard Updates\n")
	fmt.Fprintf(&b, "## All-Time High Streak: %d days\n", allTimeHigh)
	writeMemberList(&b, allTimeMembers)
	fmt.Fprintf(&b, "## Current Highest Streak: %d days\n", currentHigh)
	writeMemberList(&b, currentMembers)

	if len(defaulters) > 0 {
		b.WriteString("# Defaulters\n")
		writeDefaulters(&b, defaulters, updated)
	}

	return &discordgo.MessageEmbed{
		Title:       "Status Update Report",
		URL:         titleURL,
		Description: b.String(),
		Color:       colorReport,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    botName,
			URL:     authorURL,
			IconURL: t.msgr.BotAvatarURL(),
		},
		Timestamp: t.now().UTC().Format(time.RFC3339),
	}, nil
}

// leaderboard resolves the all-time and current highest streaks with every
// member holding them.
func (t *StatusUpdateCheck) leaderboard(ctx context.Context, members []rootapi.Member) (int, []rootapi.Member, int, []rootapi.Member, error) {
	streaks, err := t.root.Streaks(ctx)
	if err != nil {
		return 0, nil, 0, nil, err
	}

	byID := make(map[int]rootapi.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	allTimeHigh, allTimeMembers := highestStreak(streaks, byID, func(s rootapi.MemberStreak) int { return s.Max })
	currentHigh, currentMembers := highestStreak(streaks, byID, func(s rootapi.MemberStreak) int { return s.Current })
	return allTimeHigh, allTimeMembers, currentHigh, currentMembers, nil
}

func highestStreak(streaks []rootapi.MemberStreak, byID map[int]rootapi.Member, value func(rootapi.MemberStreak) int) (int, []rootapi.Member) {
	highest := 0
	var holders []rootapi.Member
	for _, s := range streaks {
		m, ok := byID[s.MemberID]
		if !ok {
			continue
		}
		switch v := value(s); {
		case v > highest:
			highest = v
			holders = holders[:0]
			holders = append(holders, m)
		case v == highest:
			holders = append(holders, m)
		}
	}
	return highest, holders
}

func writeMemberList(b *strings.Builder, members []rootapi.Member) {
	for _, m := range members {
		fmt.Fprintf(b, "- %s\n", m.Name)
	}
	b.WriteString("\n")
}

func writeDefaulters(b *strings.Builder, defaulters map[int][]rootapi.Member, updated map[int]rootapi.Streak) {
	groups := make([]int, 0, len(defaulters))
	for g := range defaulters {
		groups = append(groups, g)
	}
	sort.Ints(groups)

	for _, g := range groups {
		fmt.Fprintf(b, "## Group %d\n", g)
		for _, m := range defaulters[g] {
			current := m.CurrentStreak()
			if s, ok := updated[m.ID]; ok {
				current = s.Current
			}
			var marker string
			switch current {
			case 0:
				marker = ":x:"
			case -1:
				marker = ":x::x:"
			default:
				marker = ":headstone:"
			}
			fmt.Fprintf(b, "- %s | %s\n", m.Name, marker)
		}
	}
	b.WriteString("\n")
}
