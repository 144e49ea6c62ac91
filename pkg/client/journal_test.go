package client

import (
	"testing"
	"time"

	"github.com/fystack/mpcium-client/pkg/kvstore"
	"github.com/fystack/mpcium-client/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryJournal(t *testing.T) *Journal {
	t.Helper()
	store, err := kvstore.NewBadgerKVStore(kvstore.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	j := NewJournal(store)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndResolve(t *testing.T) {
	j := newMemoryJournal(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, j.Record("signing", "tx-2", messaging.PublishDurable))
	require.NoError(t, j.Record("keygen", "w1", messaging.PublishBestEffort))
	require.NoError(t, j.Record("signing", "tx-1", messaging.PublishDurable))

	signing, err := j.Pending("signing")
	require.NoError(t, err)
	require.Len(t, signing, 2)
	assert.Equal(t, "tx-2", signing[0].ID, "oldest first")
	assert.Equal(t, "tx-1", signing[1].ID)

	all, err := j.Pending("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, messaging.PublishBestEffort, all[1].Path)

	require.NoError(t, j.Resolve("signing", "tx-2"))
	signing, err = j.Pending("signing")
	require.NoError(t, err)
	require.Len(t, signing, 1)
	assert.Equal(t, "tx-1", signing[0].ID)
}

func TestJournal_Update(t *testing.T) {
	j := newMemoryJournal(t)
	require.NoError(t, j.Record("keygen", "w1", messaging.PublishDurable))

	require.NoError(t, j.Update("keygen", "w1", messaging.PublishBestEffort))
	pending, err := j.Pending("keygen")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, messaging.PublishBestEffort, pending[0].Path)

	require.NoError(t, j.Resolve("keygen", "w1"))
	require.NoError(t, j.Update("keygen", "w1", messaging.PublishDurable))
	pending, err = j.Pending("keygen")
	require.NoError(t, err)
	assert.Empty(t, pending, "resolved requests are not written back")
}

func TestJournal_ResolveUnknownIsNoop(t *testing.T) {
	j := newMemoryJournal(t)
	assert.NoError(t, j.Resolve("keygen", "missing"))
}

func TestJournal_UnknownCategory(t *testing.T) {
	j := newMemoryJournal(t)
	_, err := j.Pending("presign")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestOpenJournal_Encrypted(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir, "journal-password")
	require.NoError(t, err)
	require.NoError(t, j.Record("reshare", "session-1", messaging.PublishDurable))
	require.NoError(t, j.Close())

	j, err = OpenJournal(dir, "journal-password")
	require.NoError(t, err)
	defer j.Close()

	pending, err := j.Pending("reshare")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "session-1", pending[0].ID)
}
