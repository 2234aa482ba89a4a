package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"textswitcher/internal/layout"
)

func TestRingBoundedBySize(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRing(10, 30*time.Second)
	r.SetClock(func() time.Time { return now })

	for i := 0; i < 25; i++ {
		r.Add(Entry{Word: "w", Layout: layout.Russian})
	}
	assert.Equal(t, 10, r.Len())
}

func TestRingBoundedByAge(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRing(0, 0)
	r.SetClock(func() time.Time { return now })

	r.Add(Entry{Word: "old", Layout: layout.English})
	now = now.Add(20 * time.Second)
	r.Add(Entry{Word: "new", Layout: layout.Russian})
	assert.Equal(t, 2, r.Len())

	now = now.Add(15 * time.Second)
	snap := r.Snapshot()
	if assert.Len(t, snap, 1) {
		assert.Equal(t, "new", snap[0].Word)
	}

	now = now.Add(time.Minute)
	assert.Equal(t, 0, r.Len())
}

func TestRingIgnoresUnresolvedLayouts(t *testing.T) {
	r := NewRing(5, time.Minute)
	r.Add(Entry{Word: "123", Layout: layout.Unknown})
	r.Add(Entry{Word: "abcабв", Layout: layout.Mixed})
	assert.Equal(t, 0, r.Len())

	r.Add(Entry{Word: "ok", Layout: layout.English})
	r.Reset()
	assert.Equal(t, 0, r.Len())
}

func TestSetBoundsTrims(t *testing.T) {
	r := NewRing(10, time.Minute)
	for i := 0; i < 6; i++ {
		r.Add(Entry{Word: "w", Layout: layout.English})
	}
	r.SetBounds(3, 0)
	assert.Equal(t, 3, r.Len())
}

func TestMajority(t *testing.T) {
	ru := Entry{Layout: layout.Russian}
	en := Entry{Layout: layout.English}

	assert.Equal(t, layout.Unknown, Majority(nil, 2))
	assert.Equal(t, layout.Unknown, Majority([]Entry{ru}, 2), "one word is not a majority")
	assert.Equal(t, layout.Russian, Majority([]Entry{ru, ru}, 2))
	assert.Equal(t, layout.Unknown, Majority([]Entry{ru, ru, en, en}, 2), "tie")
	assert.Equal(t, layout.English, Majority([]Entry{en, ru, en}, 2))
}
