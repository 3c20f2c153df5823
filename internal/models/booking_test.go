package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2027, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestDateRangeOverlapIsSymmetric(t *testing.T) {
	tests := []struct {
		name string
		a, b DateRange
		want bool
	}{
		{"partial overlap", DateRange{day(10), day(12)}, DateRange{day(11), day(13)}, true},
		{"contained", DateRange{day(10), day(20)}, DateRange{day(12), day(14)}, true},
		{"touching ranges do not overlap", DateRange{day(10), day(12)}, DateRange{day(12), day(14)}, false},
		{"disjoint", DateRange{day(1), day(3)}, DateRange{day(10), day(12)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestDateRangeIntersect(t *testing.T) {
	got, ok := DateRange{day(10), day(12)}.Intersect(DateRange{day(11), day(13)})
	require.True(t, ok)
	assert.True(t, got.Start.Equal(day(11)))
	assert.True(t, got.End.Equal(day(12)))
	assert.Equal(t, 1, got.Nights())

	_, ok = DateRange{day(10), day(12)}.Intersect(DateRange{day(12), day(14)})
	assert.False(t, ok)
}

func TestBookingOverlapsWith(t *testing.T) {
	b := &Booking{CheckIn: day(10), CheckOut: day(12)}
	assert.True(t, b.OverlapsWith(day(11), day(13)))
	assert.False(t, b.OverlapsWith(day(12), day(14)))
}

func TestSyncActionShouldExpire(t *testing.T) {
	now := time.Now().UTC()
	action := &SyncAction{Status: ActionPending, ExpireAfterHours: 72, CreatedAt: now.Add(-73 * time.Hour)}
	assert.True(t, action.ShouldExpire(now))

	action.CreatedAt = now.Add(-time.Hour)
	assert.False(t, action.ShouldExpire(now))

	action.CreatedAt = now.Add(-73 * time.Hour)
	action.Status = ActionCompleted
	assert.False(t, action.ShouldExpire(now))
}
