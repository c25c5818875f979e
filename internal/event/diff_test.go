package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	now := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	kept := onlineRecord()
	removed := onlineRecord()
	removed.ID = "200-7"
	previous := CreateSnapshot([]*Record{kept, removed}, now.Format(time.RFC3339))

	updated := onlineRecord()
	updated.SoldOut = true
	added := inPersonRecord()
	added.ID = "300-1"

	result := Diff(previous, []*Record{updated, added}, now)

	require.Len(t, result.New, 1)
	assert.Equal(t, "300-1", result.New[0].ID)
	require.Len(t, result.Removed, 1)
	assert.Equal(t, "200-7", result.Removed[0].ID)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "sold_out", result.Changes[0].Field)
	assert.Equal(t, "false", result.Changes[0].OldValue)
	assert.Equal(t, "true", result.Changes[0].NewValue)
}

func TestDiffNilPrevious(t *testing.T) {
	result := Diff(nil, []*Record{onlineRecord()}, time.Now())
	assert.Len(t, result.New, 1)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Changes)
}

func TestDetectChanges(t *testing.T) {
	now := time.Now()

	t.Run("new record", func(t *testing.T) {
		changes := DetectChanges(nil, onlineRecord(), now)
		require.Len(t, changes, 1)
		assert.Equal(t, "new", changes[0].Field)
	})

	t.Run("moved and rescheduled", func(t *testing.T) {
		prev := onlineRecord()
		cur := inPersonRecord()
		cur.StartAt = civil(2025, time.March, 4, 14, 0)
		cur.EndAt = civil(2025, time.March, 4, 17, 0)

		fields := make(map[string]*Change)
		for _, c := range DetectChanges(prev, cur, now) {
			fields[c.Field] = c
		}
		assert.Len(t, fields, 3)
		assert.Equal(t, "2025-03-04T14:00:00", fields["start_at"].NewValue)
		assert.Equal(t, "online", fields["location"].OldValue)
		assert.Equal(t, "1 rue de la Paix, 75002 Paris", fields["location"].NewValue)
	})

	t.Run("identical", func(t *testing.T) {
		assert.Empty(t, DetectChanges(onlineRecord(), onlineRecord(), now))
	})
}
