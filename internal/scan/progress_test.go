package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_SnapshotConsistency(t *testing.T) {
	tr := NewTracker()
	tr.Update(StageStage1, 10, "filtering", "AAPL")

	snap := tr.Snapshot()
	assert.Equal(t, StageStage1, snap.Stage)
	assert.Equal(t, 10.0, snap.Percent)
	assert.Equal(t, "filtering", snap.Message)
	assert.Equal(t, "AAPL", snap.Ticker)
}

func TestTracker_ConcurrentReadersOneWriter(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = tr.Snapshot()
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		tr.Update(StageDownload, float64(i%100), "downloading", "MSFT")
	}
	close(stop)
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, StageDownload, snap.Stage)
}

func TestCancelToken_Idempotent(t *testing.T) {
	tok := NewCancelToken()
	assert.False(t, tok.Cancelled())

	tok.Cancel()
	tok.Cancel() // second call must not panic
	assert.True(t, tok.Cancelled())

	select {
	case <-tok.Done():
	default:
		t.Fatal("Done channel should be closed after Cancel")
	}
}

func TestCancelToken_BindPropagates(t *testing.T) {
	tok := NewCancelToken()
	ctx, cancel := tok.Bind(context.Background())
	defer cancel()

	require.NoError(t, ctx.Err())
	tok.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context not cancelled after token fired")
	}
}

func TestScanContext_Isolated(t *testing.T) {
	a := NewScanContext()
	b := NewScanContext()

	a.Cancel.Cancel()
	a.Progress.Update(StageStage1, 50, "half", "")

	assert.False(t, b.Cancel.Cancelled())
	assert.Empty(t, b.Progress.Snapshot().Stage)
}
