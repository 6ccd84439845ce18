package undo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stopmidnight/taskboard/internal/testutil"
)

func TestTakeReturnsEntryOnce(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()
	ledger := New(0, clock.Now)

	recorded := ledger.Record("0001_a_review.md", Entry{
		PreviousFilename: "0001_a_todo.md",
		PreviousContent:  []byte("original"),
		NewFilename:      "0001_a_review.md",
	})
	assert.Equal(t, clock.Now().Add(DefaultWindow), recorded.ExpiresAt)

	entry, err := ledger.Take("0001_a_review.md")
	require.NoError(t, err)
	assert.Equal(t, "0001_a_todo.md", entry.PreviousFilename)
	assert.Equal(t, "original", string(entry.PreviousContent))

	_, err = ledger.Take("0001_a_review.md")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, ledger.Len())
}

func TestTakeUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := New(time.Minute, nil).Take("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredEntryIsDroppedLazily(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()
	ledger := New(120*time.Second, clock.Now)

	ledger.Record("k", Entry{PreviousFilename: "p"})

	clock.Advance(120 * time.Second)
	assert.Equal(t, 1, ledger.Len(), "no sweep happens before a lookup")

	clock.Advance(time.Millisecond)

	_, err := ledger.Take("k")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, ledger.Len(), "expired entry is removed by the lookup")
}

func TestEntryAtExactDeadlineIsStillLive(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()
	ledger := New(time.Minute, clock.Now)

	ledger.Record("k", Entry{PreviousFilename: "p"})
	clock.Advance(time.Minute)

	_, err := ledger.Take("k")
	require.NoError(t, err)
}

func TestRecordOverwritesSameKey(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()
	ledger := New(0, clock.Now)

	ledger.Record("k", Entry{PreviousFilename: "first"})
	clock.Advance(10 * time.Second)
	ledger.Record("k", Entry{PreviousFilename: "second"})

	assert.Equal(t, 1, ledger.Len())

	entry, err := ledger.Take("k")
	require.NoError(t, err)
	assert.Equal(t, "second", entry.PreviousFilename)
	assert.Equal(t, clock.Now().Add(DefaultWindow), entry.ExpiresAt)
}

func TestRestoreKeepsExpiryAndNewerEntries(t *testing.T) {
	t.Parallel()

	clock := testutil.NewClock()
	ledger := New(time.Minute, clock.Now)

	ledger.Record("0001_a_review.md", Entry{PreviousFilename: "0001_a_todo.md"})

	entry, err := ledger.Take("0001_a_review.md")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	ledger.Restore("0001_a_review.md", entry)

	clock.Advance(31 * time.Second)
	_, err = ledger.Take("0001_a_review.md")
	require.ErrorIs(t, err, ErrNotFound, "restored entries keep their deadline")

	ledger.Record("0002_b_done.md", Entry{PreviousFilename: "0002_b_review.md"})
	ledger.Restore("0002_b_done.md", Entry{PreviousFilename: "stale"})

	got, err := ledger.Take("0002_b_done.md")
	require.NoError(t, err)
	assert.Equal(t, "0002_b_review.md", got.PreviousFilename)
}
