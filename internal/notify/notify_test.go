package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/erpview/internal/logging"
)

func TestHistory_KeepsNewest(t *testing.T) {
	h := NewHistory(2)
	Send(h, Info, "one")
	Send(h, Warning, "two")
	Send(h, Error, "three")

	items := h.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].Message)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, Error, latest.Level)
	assert.Equal(t, "three", latest.Message)
	assert.False(t, latest.At.IsZero())
}

func TestHistory_Empty(t *testing.T) {
	_, ok := NewHistory(0).Latest()
	assert.False(t, ok)
}

func TestLog_MapsLevels(t *testing.T) {
	var buf bytes.Buffer
	s := NewLog(logging.New(logging.Config{Level: slog.LevelDebug, Output: &buf}))
	Send(s, Error, "save rejected")
	Send(s, Success, "saved")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "save rejected")
	assert.Contains(t, out, "kind=success")
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewHistory(5), NewHistory(5)
	Send(Multi{a, nil, b}, Success, "done")
	assert.Len(t, a.Items(), 1)
	assert.Len(t, b.Items(), 1)
}

func TestNilSinkIsIgnored(t *testing.T) {
	Send(nil, Info, "nobody listens")
	Discard.Notify(Notification{Message: "dropped"})
}

func TestAlways(t *testing.T) {
	ok, err := Always(true).Confirm(context.Background(), Prompt{Title: "Delete 3 employees?"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Always(false).Confirm(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.False(t, ok)
}
