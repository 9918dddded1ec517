package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronSchedulerRunsJob(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	s := NewCronScheduler("@every 1s", loc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	fired := make(chan time.Time, 4)
	require.NoError(t, s.Start(context.Background(), func(ts time.Time) {
		select {
		case fired <- ts:
		default:
		}
	}))
	defer s.Stop(context.Background())

	select {
	case ts := <-fired:
		assert.Equal(t, loc, ts.Location())
	case <-time.After(3 * time.Second):
		t.Fatal("job was not triggered")
	}

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("not a cron", nil, nil)
	assert.Error(t, s.Start(context.Background(), func(time.Time) {}))
	assert.Error(t, Validate("61 * * * *"))
	assert.NoError(t, Validate("0 6 * * *"))
}
