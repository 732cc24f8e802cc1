package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amd/internal/rootapi"
	"amd/pkg/logx"
)

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

type fakeMessenger struct {
	messages map[string][]*discordgo.Message
	fetchErr error

	embeds   []sentEmbed
	embedErr error
}

func (f *fakeMessenger) Say(ctx context.Context, channelID, text string) error { return nil }

func (f *fakeMessenger) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if f.embedErr != nil {
		return f.embedErr
	}
	f.embeds = append(f.embeds, sentEmbed{channelID: channelID, embed: embed})
	return nil
}

func (f *fakeMessenger) RecentMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.messages[channelID], nil
}

func (f *fakeMessenger) BotAvatarURL() string { return "https://cdn.example/avatar.png" }

type fakeRoot struct {
	members    []rootapi.Member
	streaks    []rootapi.MemberStreak
	attendance []rootapi.AttendanceRecord

	membersErr    error
	streaksErr    error
	attendanceErr error
	mutateErr     map[int]error

	incremented []int
	reset       []int
}

func (f *fakeRoot) Members(ctx context.Context) ([]rootapi.Member, error) {
	return f.members, f.membersErr
}

func (f *fakeRoot) Streaks(ctx context.Context) ([]rootapi.MemberStreak, error) {
	return f.streaks, f.streaksErr
}

func (f *fakeRoot) IncrementStreak(ctx context.Context, memberID int) (rootapi.Streak, error) {
	if err := f.mutateErr[memberID]; err != nil {
		return rootapi.Streak{}, err
	}
	f.incremented = append(f.incremented, memberID)
	return rootapi.Streak{Current: 1, Max: 1}, nil
}

func (f *fakeRoot) ResetStreak(ctx context.Context, memberID int) (rootapi.Streak, error) {
	if err := f.mutateErr[memberID]; err != nil {
		return rootapi.Streak{}, err
	}
	f.reset = append(f.reset, memberID)
	return rootapi.Streak{Current: 0, Max: 3}, nil
}

func (f *fakeRoot) AttendanceToday(ctx context.Context) ([]rootapi.AttendanceRecord, error) {
	return f.attendance, f.attendanceErr
}

func orgLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func statusMessage(authorID, content string, at time.Time) *discordgo.Message {
	return &discordgo.Message{
		Author:    &discordgo.User{ID: authorID},
		Content:   content,
		Timestamp: at,
	}
}

func newStatusCheck(cfg StatusUpdateConfig, root RootClient, msgr Messenger, loc *time.Location, now time.Time) *StatusUpdateCheck {
	task := NewStatusUpdateCheck(cfg, root, msgr, loc, logx.Nop())
	task.now = func() time.Time { return now }
	return task
}

func TestStatusUpdateRunIn(t *testing.T) {
	loc := orgLocation(t)
	cfg := StatusUpdateConfig{GroupChannelIDs: []string{"g1"}, ReportChannelID: "report"}

	task := newStatusCheck(cfg, &fakeRoot{}, &fakeMessenger{}, loc,
		time.Date(2026, 8, 26, 4, 0, 0, 0, loc))
	assert.Equal(t, time.Hour, task.RunIn())

	task = newStatusCheck(cfg, &fakeRoot{}, &fakeMessenger{}, loc,
		time.Date(2026, 8, 26, 6, 0, 0, 0, loc))
	assert.Equal(t, 23*time.Hour, task.RunIn())
}

func TestStatusUpdateCategorizesAndMutatesStreaks(t *testing.T) {
	loc := orgLocation(t)
	now := time.Date(2026, 8, 26, 5, 0, 0, 0, loc)
	inWindow := time.Date(2026, 8, 25, 22, 30, 0, 0, loc)

	root := &fakeRoot{
		members: []rootapi.Member{
			{ID: 1, Name: "Asha", DiscordID: "d1", GroupID: 1},
			{ID: 2, Name: "Ravi", DiscordID: "d2", GroupID: 1},
			{ID: 3, Name: "Meera", DiscordID: "d3", GroupID: 2},
		},
		streaks: []rootapi.MemberStreak{
			{MemberID: 1, Current: 4, Max: 10},
			{MemberID: 3, Current: 2, Max: 2},
		},
	}
	msgr := &fakeMessenger{messages: map[string][]*discordgo.Message{
		"g1": {
			statusMessage("d1", "Namah Shivaya\nDid things.\nRegards, Asha", inWindow),
			statusMessage("d2", "just chatting, no update here", inWindow),
		},
	}}

	task := newStatusCheck(StatusUpdateConfig{
		GroupChannelIDs: []string{"g1"},
		ReportChannelID: "report",
	}, root, msgr, loc, now)

	require.NoError(t, task.Run(context.Background()))

	assert.Equal(t, []int{1}, root.incremented)
	assert.ElementsMatch(t, []int{2, 3}, root.reset)

	require.Len(t, msgr.embeds, 1)
	sent := msgr.embeds[0]
	assert.Equal(t, "report", sent.channelID)
	assert.Equal(t, "Status Update Report", sent.embed.Title)
	assert.Equal(t, colorReport, sent.embed.Color)
	assert.Contains(t, sent.embed.Description, "All-Time High Streak: 10 days")
	assert.Contains(t, sent.embed.Description, "Current Highest Streak: 4 days")
	assert.Contains(t, sent.embed.Description, "# Defaulters")
	assert.Contains(t, sent.embed.Description, "## Group 1")
	assert.Contains(t, sent.embed.Description, "## Group 2")
	assert.Contains(t, sent.embed.Description, "Ravi | :x:")
}

func TestStatusUpdateWindowAndKeywordFiltering(t *testing.T) {
	loc := orgLocation(t)
	now := time.Date(2026, 8, 26, 5, 0, 0, 0, loc)
	beforeWindow := time.Date(2026, 8, 25, 19, 59, 0, 0, loc)
	inWindow := time.Date(2026, 8, 26, 1, 0, 0, 0, loc)

	root := &fakeRoot{members: []rootapi.Member{
		{ID: 1, Name: "Asha", DiscordID: "d1", GroupID: 1},
		{ID: 2, Name: "Ravi", DiscordID: "d2", GroupID: 1},
	}}
	msgr := &fakeMessenger{messages: map[string][]*discordgo.Message{
		"g1": {
			// Proper update but posted before yesterday 20:00.
			statusMessage("d1", "namah shivaya ... regards", beforeWindow),
			// In window but missing the greeting keyword.
			statusMessage("d2", "worked on things, regards", inWindow),
		},
	}}

	task := newStatusCheck(StatusUpdateConfig{
		GroupChannelIDs: []string{"g1"},
		ReportChannelID: "report",
	}, root, msgr, loc, now)

	require.NoError(t, task.Run(context.Background()))
	assert.Empty(t, root.incremented)
	assert.ElementsMatch(t, []int{1, 2}, root.reset)
}

func TestStatusUpdateExemptAuthorNeedsOnlyRegards(t *testing.T) {
	loc := orgLocation(t)
	now := time.Date(2026, 8, 26, 5, 0, 0, 0, loc)
	inWindow := time.Date(2026, 8, 26, 0, 30, 0, 0, loc)

	root := &fakeRoot{members: []rootapi.Member{
		{ID: 1, Name: "Asha", DiscordID: "d1", GroupID: 1},
	}}
	msgr := &fakeMessenger{messages: map[string][]*discordgo.Message{
		"g1": {statusMessage("d1", "shipped the release. Regards", inWindow)},
	}}

	task := newStatusCheck(StatusUpdateConfig{
		GroupChannelIDs: []string{"g1"},
		ReportChannelID: "report",
		ExemptAuthorIDs: []string{"d1"},
	}, root, msgr, loc, now)

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, []int{1}, root.incremented)
	assert.Empty(t, root.reset)
}

func TestStatusUpdateChannelFetchFailureFailsRun(t *testing.T) {
	loc := orgLocation(t)
	now := time.Date(2026, 8, 26, 5, 0, 0, 0, loc)

	root := &fakeRoot{members: []rootapi.Member{{ID: 1, DiscordID: "d1"}}}
	msgr := &fakeMessenger{fetchErr: errors.New("discord down")}

	task := newStatusCheck(StatusUpdateConfig{
		GroupChannelIDs: []string{"g1"},
		ReportChannelID: "report",
	}, root, msgr, loc, now)

	err := task.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, msgr.embeds, "no report should go out on a fetch failure")
	assert.Empty(t, root.incremented)
	assert.Empty(t, root.reset)
}

func TestStatusUpdateStreakMutationFailureIsSkipped(t *testing.T) {
	loc := orgLocation(t)
	now := time.Date(2026, 8, 26, 5, 0, 0, 0, loc)

	root := &fakeRoot{
		members: []rootapi.Member{
			{ID: 1, Name: "Asha", DiscordID: "d1", GroupID: 1},
			{ID: 2, Name: "Ravi", DiscordID: "d2", GroupID: 1},
		},
		mutateErr: map[int]error{1: errors.New("root rejected mutation")},
	}
	msgr := &fakeMessenger{messages: map[string][]*discordgo.Message{"g1": nil}}

	task := newStatusCheck(StatusUpdateConfig{
		GroupChannelIDs: []string{"g1"},
		ReportChannelID: "report",
	}, root, msgr, loc, now)

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, []int{2}, root.reset, "the healthy member's reset still happens")
	require.Len(t, msgr.embeds, 1)
}

func TestStatusUpdateDefaulterMarkers(t *testing.T) {
	loc := orgLocation(t)
	now := time.Date(2026, 8, 26, 5, 0, 0, 0, loc)

	root := &fakeRoot{
		members: []rootapi.Member{
			// Mutation fails, so the pre-run streak decides the marker.
			{ID: 1, Name: "Asha", DiscordID: "d1", GroupID: 1, Streaks: []rootapi.Streak{{Current: -1}}},
			{ID: 2, Name: "Ravi", DiscordID: "d2", GroupID: 1, Streaks: []rootapi.Streak{{Current: -5}}},
		},
		mutateErr: map[int]error{1: errors.New("boom"), 2: errors.New("boom")},
	}
	msgr := &fakeMessenger{messages: map[string][]*discordgo.Message{"g1": nil}}

	task := newStatusCheck(StatusUpdateConfig{
		GroupChannelIDs: []string{"g1"},
		ReportChannelID: "report",
	}, root, msgr, loc, now)

	require.NoError(t, task.Run(context.Background()))
	require.Len(t, msgr.embeds, 1)
	desc := msgr.embeds[0].embed.Description
	assert.Contains(t, desc, "Asha | :x::x:")
	assert.Contains(t, desc, "Ravi | :headstone:")
}
