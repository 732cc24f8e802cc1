package rootapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amd/pkg/logx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, logx.Nop())
}

func respondData(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{"data": data})
	require.NoError(t, err)
}

func TestMembers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "members")

		respondData(t, w, map[string]any{
			"members": []map[string]any{
				{
					"memberId":  1,
					"name":      "Aditya Kumar",
					"discordId": "111",
					"groupId":   2,
					"streak":    []map[string]int{{"currentStreak": 4, "maxStreak": 9}},
				},
				{
					"memberId":  2,
					"name":      "Bhavana Nair",
					"discordId": "222",
					"groupId":   1,
					"streak":    []map[string]int{},
				},
			},
		})
	})

	members, err := c.Members(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Aditya Kumar", members[0].Name)
	assert.Equal(t, 4, members[0].CurrentStreak())
	assert.Equal(t, 0, members[1].CurrentStreak())
}

func TestMembersMalformedData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondData(t, w, map[string]any{"somethingElse": []int{}})
	})

	_, err := c.Members(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed), "expected ErrMalformed, got %v", err)
}

func TestMembersServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Members(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestMembersGraphQLErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		err := json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"message": "unauthorized"}},
		})
		require.NoError(t, err)
	})

	_, err := c.Members(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestIncrementStreak(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "incrementStreak")
		assert.Contains(t, string(body), "memberId: 7")

		respondData(t, w, map[string]any{
			"incrementStreak": map[string]int{"currentStreak": 5, "maxStreak": 9},
		})
	})

	streak, err := c.IncrementStreak(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 5, streak.Current)
	assert.Equal(t, 9, streak.Max)
}

func TestResetStreak(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "resetStreak")

		respondData(t, w, map[string]any{
			"resetStreak": map[string]int{"currentStreak": 0, "maxStreak": 9},
		})
	})

	streak, err := c.ResetStreak(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, streak.Current)
}

func TestAttendanceToday(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondData(t, w, map[string]any{
			"attendanceToday": []map[string]any{
				{"name": "Aditya Kumar", "year": 2, "isPresent": true, "timeIn": "17:05:12.103"},
				{"name": "Bhavana Nair", "year": 1, "isPresent": false, "timeIn": ""},
			},
		})
	})

	records, err := c.AttendanceToday(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].IsPresent)
	assert.True(t, strings.HasPrefix(records[0].TimeIn, "17:05:12"))
	assert.Empty(t, records[1].TimeIn)
}

func TestConnectivityFailure(t *testing.T) {
	// Point at a closed server.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(srv.URL, time.Second, logx.Nop())

	_, err := c.Members(context.Background())
	require.Error(t, err)
}
