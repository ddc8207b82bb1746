package datagen

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/objectstore"
)

func TestUsers(t *testing.T) {
	users, err := NewGenerator("B3", 42).Users(15)
	require.NoError(t, err)
	require.Len(t, users, 15)

	idPattern := regexp.MustCompile(`^usr-B3-\d{3}$`)
	seen := map[string]bool{}
	for _, u := range users {
		assert.Regexp(t, idPattern, u.UserID)
		assert.False(t, seen[u.UserID], "duplicate id %s", u.UserID)
		seen[u.UserID] = true
		assert.Contains(t, Countries, u.Country)
		assert.Regexp(t, `^2026-02-\d{2}T00:00:00Z$`, u.CreatedAt)
	}
	assert.Equal(t, "usr-B3-001", users[0].UserID)
	assert.Equal(t, "zara.b3.1@example.com", users[0].Email)
}

func TestEventsReferenceUsers(t *testing.T) {
	g := NewGenerator("B4", 7)
	users, err := g.Users(10)
	require.NoError(t, err)
	events, err := g.Events(users, 200)
	require.NoError(t, err)
	require.Len(t, events, 200)

	known := map[string]bool{}
	for _, u := range users {
		known[u.UserID] = true
	}
	sessionPattern := regexp.MustCompile(`^sess-B4-\d{3}$`)
	for _, ev := range events {
		assert.True(t, known[ev.UserID], "unknown user %s", ev.UserID)
		assert.Contains(t, EventTypes, ev.EventType)
		assert.Regexp(t, sessionPattern, ev.SessionID)
		if ev.EventType == "purchase" {
			require.NotNil(t, ev.Amount)
			assert.GreaterOrEqual(t, *ev.Amount, 19.99)
			assert.LessOrEqual(t, *ev.Amount, 299.99)
		} else {
			assert.Nil(t, ev.Amount, "amount on %s event", ev.EventType)
		}
	}
	assert.Equal(t, "evt-B4-200", events[199].EventID)
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a, err := NewGenerator("B1", 99).Generate(5, 20)
	require.NoError(t, err)
	b, err := NewGenerator("B1", 99).Generate(5, 20)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGeneratorValidation(t *testing.T) {
	_, err := NewGenerator("", 1).Users(3)
	assert.Equal(t, errs.CodeInvalidInput, errs.CodeOf(err))

	_, err = NewGenerator("B1", 1).Users(-1)
	assert.Error(t, err)

	_, err = NewGenerator("B1", 1).Events(nil, 5)
	assert.Error(t, err)

	events, err := NewGenerator("B1", 1).Events(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWriteJSONLOmitsAmount(t *testing.T) {
	amount := 42.5
	events := []Event{
		{EventID: "evt-1", EventType: "click"},
		{EventID: "evt-2", EventType: "purchase", Amount: &amount},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteJSONL(buf, events))

	var lines []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "amount")
	assert.Equal(t, 42.5, lines[1]["amount"])
}

func TestWriteParquet(t *testing.T) {
	batch, err := NewGenerator("B2", 3).Generate(4, 12)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, WriteParquet(buf, batch.Events))
	data := buf.Bytes()
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewLocalStore(t.TempDir())
	batch, err := NewGenerator("B5", 11).Generate(3, 6)
	require.NoError(t, err)

	keys, err := Publish(ctx, store, "lake", batch, FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/users/raw_users_B5.json", "raw/events/raw_events_B5.json"}, keys)

	data, err := store.GetObject(ctx, "lake", "raw/users/raw_users_B5.json")
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))

	keys, err = Publish(ctx, store, "lake", batch, FormatParquet)
	require.NoError(t, err)
	assert.Equal(t, "raw/events/raw_events_B5.parquet", keys[1])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)

	_, err = ParseFormat("csv")
	assert.Equal(t, errs.CodeInvalidInput, errs.CodeOf(err))
}

func TestRowsMatchColumns(t *testing.T) {
	batch, err := NewGenerator("B6", 5).Generate(2, 30)
	require.NoError(t, err)

	users := UserRows(batch.Users)
	require.Len(t, users, 2)
	assert.Len(t, users[0], len(UserColumns))
	assert.Equal(t, "usr-B6-001", users[0][0])

	events := EventRows(batch.Events)
	require.Len(t, events, 30)
	for i, row := range events {
		require.Len(t, row, len(EventColumns))
		if batch.Events[i].Amount == nil {
			assert.Nil(t, row[6])
		} else {
			assert.Equal(t, *batch.Events[i].Amount, row[6])
		}
	}
}
