// Package rootapi is the client for Root, the club's GraphQL API holding
// members, streaks and attendance. Every operation returns an error rather
// than panicking on bad upstream data: a failed call fails one scheduled run,
// never the process.
package rootapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"amd/pkg/logx"
)

// ErrMalformed marks responses that arrived but did not have the expected
// shape. Callers treat it like any other failed run.
var ErrMalformed = errors.New("malformed response from root")

const defaultTimeout = 15 * time.Second

type Client struct {
	url  string
	http *http.Client
	log  logx.Logger
}

func New(url string, timeout time.Duration, log logx.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log.With(logx.String("comp", "rootapi")),
	}
}

type graphqlError struct {
	Message string `json:"message"`
}

// post sends a GraphQL document and decodes the "data" object into out.
func (c *Client) post(ctx context.Context, query string, out any) error {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("posting query to root", logx.String("url", c.url))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post to root: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("root responded with status %s", resp.Status)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("root returned errors: %s", envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("%w: missing data object", ErrMalformed)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

const membersQuery = `{
  members {
    memberId
    name
    discordId
    groupId
    streak {
      currentStreak
      maxStreak
    }
  }
}`

// Members fetches all members with their embedded streaks.
func (c *Client) Members(ctx context.Context) ([]Member, error) {
	var data struct {
		Members []Member `json:"members"`
	}
	if err := c.post(ctx, membersQuery, &data); err != nil {
		return nil, fmt.Errorf("fetch members: %w", err)
	}
	if data.Members == nil {
		return nil, fmt.Errorf("%w: missing members field", ErrMalformed)
	}
	return data.Members, nil
}

const streaksQuery = `{
  streaks {
    memberId
    currentStreak
    maxStreak
  }
}`

// Streaks fetches all streak rows.
func (c *Client) Streaks(ctx context.Context) ([]MemberStreak, error) {
	var data struct {
		Streaks []MemberStreak `json:"streaks"`
	}
	if err := c.post(ctx, streaksQuery, &data); err != nil {
		return nil, fmt.Errorf("fetch streaks: %w", err)
	}
	if data.Streaks == nil {
		return nil, fmt.Errorf("%w: missing streaks field", ErrMalformed)
	}
	return data.Streaks, nil
}

// IncrementStreak bumps the member's streak and returns the updated value.
func (c *Client) IncrementStreak(ctx context.Context, memberID int) (Streak, error) {
	mutation := fmt.Sprintf(`mutation {
  incrementStreak(input: { memberId: %d }) {
    currentStreak
    maxStreak
  }
}`, memberID)

	var data struct {
		IncrementStreak *Streak `json:"incrementStreak"`
	}
	if err := c.post(ctx, mutation, &data); err != nil {
		return Streak{}, fmt.Errorf("increment streak for member %d: %w", memberID, err)
	}
	if data.IncrementStreak == nil {
		return Streak{}, fmt.Errorf("%w: missing incrementStreak field", ErrMalformed)
	}
	return *data.IncrementStreak, nil
}

// ResetStreak zeroes the member's streak and returns the updated value.
func (c *Client) ResetStreak(ctx context.Context, memberID int) (Streak, error) {
	mutation := fmt.Sprintf(`mutation {
  resetStreak(input: { memberId: %d }) {
    currentStreak
    maxStreak
  }
}`, memberID)

	var data struct {
		ResetStreak *Streak `json:"resetStreak"`
	}
	if err := c.post(ctx, mutation, &data); err != nil {
		return Streak{}, fmt.Errorf("reset streak for member %d: %w", memberID, err)
	}
	if data.ResetStreak == nil {
		return Streak{}, fmt.Errorf("%w: missing resetStreak field", ErrMalformed)
	}
	return *data.ResetStreak, nil
}

const attendanceQuery = `{
  attendanceToday {
    name
    year
    isPresent
    timeIn
  }
}`

// AttendanceToday fetches today's attendance records.
func (c *Client) AttendanceToday(ctx context.Context) ([]AttendanceRecord, error) {
	var data struct {
		AttendanceToday []AttendanceRecord `json:"attendanceToday"`
	}
	if err := c.post(ctx, attendanceQuery, &data); err != nil {
		return nil, fmt.Errorf("fetch attendance: %w", err)
	}
	if data.AttendanceToday == nil {
		return nil, fmt.Errorf("%w: missing attendanceToday field", ErrMalformed)
	}
	return data.AttendanceToday, nil
}
