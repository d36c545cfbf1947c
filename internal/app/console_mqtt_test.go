package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/accurate_clock/internal/clock"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPrintReadings(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}

	store := newSnapshotStore()
	done := make(chan error, 1)
	go func() {
		done <- printReadings(ctx, out, 5*time.Millisecond, store.Read)
	}()

	// nothing is printed before the first snapshot
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, out.String())

	require.NoError(t, store.handle(testSnapshotPayload(t)))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "diff=+09:18:46.258")
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestFormatReadingLine(t *testing.T) {
	t.Parallel()

	line := formatReadingLine(clock.Reading{
		DeviceClock:    "2024/01/01 03:00:00.000",
		AccurateClock:  clock.Pending,
		Difference:     clock.Pending,
		Coordinates:    clock.Unavailable,
		Movement:       clock.Unavailable,
		Sunrise:        clock.Pending,
		SolarNoon:      clock.Pending,
		Sunset:         clock.Pending,
		NetworkQuality: clock.QualityLost,
	})

	assert.True(t, strings.HasPrefix(line, "[CLOCK] device=2024/01/01 03:00:00.000"))
	assert.Contains(t, line, "accurate=...")
	assert.Contains(t, line, "pos=---")
	assert.Contains(t, line, "net=lost")
}
