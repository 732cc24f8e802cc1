// Package tasks holds the daemon's recurring report tasks. Each task embeds
// its own compliance policy and report formatting; the scheduler only sees
// the Task interface.
//
// Collaborators are injected as narrow interfaces so tests can run a full
// task cycle against fakes.
package tasks

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"amd/internal/rootapi"
)

// Messenger is the slice of the Discord client the report tasks need.
type Messenger interface {
	Say(ctx context.Context, channelID, text string) error
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error)
	BotAvatarURL() string
}

// RootClient is the slice of the Root API the report tasks need.
type RootClient interface {
	Members(ctx context.Context) ([]rootapi.Member, error)
	Streaks(ctx context.Context) ([]rootapi.MemberStreak, error)
	IncrementStreak(ctx context.Context, memberID int) (rootapi.Streak, error)
	ResetStreak(ctx context.Context, memberID int) (rootapi.Streak, error)
	AttendanceToday(ctx context.Context) ([]rootapi.AttendanceRecord, error)
}

const (
	titleURL  = "https://www.amfoss.in/"
	authorURL = "https://github.com/amfoss/amd"
	botName   = "amD"
)

// Embed colors, matching the palette the reports have always used.
const (
	colorReport    = 0xeab308
	colorDarkGreen = 0x1f8b4c
	colorGold      = 0xf1c40f
	colorRed       = 0xe74c3c
)
