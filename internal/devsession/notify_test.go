package devsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/build"
)

func TestNewNATSNotifier_RequiresSubject(t *testing.T) {
	_, err := NewNATSNotifier("nats://127.0.0.1:4222", "")
	require.Error(t, err)
}

func TestNewNATSNotifier_Unreachable(t *testing.T) {
	_, err := NewNATSNotifier("nats://127.0.0.1:1", "assetpipe.rebuild")
	require.Error(t, err)
}

func TestHubNotifier_Broadcasts(t *testing.T) {
	hub := NewLiveReloadHub()
	n := hubNotifier{hub: hub}
	require.NoError(t, n.Notify(context.Background(), RebuildEvent{BuildID: "b1"}))
	require.NoError(t, n.Close())
}

func TestEventFor(t *testing.T) {
	end := time.Now()
	ev := eventFor(&build.Report{BuildID: "b1", Trigger: "change", CacheHits: 3, EndTime: end})
	assert.Equal(t, "b1", ev.BuildID)
	assert.Equal(t, "change", ev.Trigger)
	assert.Equal(t, 3, ev.CacheHits)
	assert.True(t, ev.FinishedAt.Equal(end))
}
