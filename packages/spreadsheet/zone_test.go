package spreadsheet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnNames(t *testing.T) {
	for col, want := range map[int]string{0: "A", 25: "Z", 26: "AA", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"} {
		assert.Equal(t, want, ColumnName(col))
		parsedCol, row, err := ParseXC(want + "7")
		require.NoError(t, err)
		assert.Equal(t, col, parsedCol)
		assert.Equal(t, 6, row)
	}
}

func TestParseZone(t *testing.T) {
	zone, err := ParseZone("C5:A1")
	require.NoError(t, err)
	assert.Equal(t, Zone{Top: 0, Left: 0, Bottom: 4, Right: 2}, zone)
	assert.Equal(t, "A1:C5", zone.String())

	zone, err = ParseZone("$b$2")
	require.NoError(t, err)
	assert.Equal(t, ZoneOf(1, 1), zone)

	for _, bad := range []string{"", "A", "1A", "A0", "A1:", ":B2", "A1:B2:C3"} {
		_, err := ParseZone(bad)
		assert.Error(t, err, bad)
	}

	zones, err := ParseZones([]string{"A1", "B2:C3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2:C3"}, ZonesToXC(zones))
}

func TestZoneGeometry(t *testing.T) {
	z := Zone{Top: 1, Left: 1, Bottom: 3, Right: 2}
	assert.Equal(t, 2, z.Width())
	assert.Equal(t, 3, z.Height())
	assert.True(t, z.Contains(2, 3))
	assert.False(t, z.Contains(0, 1))
	assert.True(t, z.Overlaps(ZoneOf(2, 2)))
	assert.False(t, z.Overlaps(ZoneOf(3, 2)))
	assert.Equal(t, Zone{Top: 0, Left: 1, Bottom: 3, Right: 5}, z.Union(ZoneOf(5, 0)))
	assert.True(t, z.IsWithin(3, 4))
	assert.False(t, z.IsWithin(2, 4))

	var positions []Position
	for p := range z.Positions() {
		positions = append(positions, p)
	}
	assert.Equal(t, []Position{{1, 1}, {2, 1}, {1, 2}, {2, 2}, {1, 3}, {2, 3}}, positions)
}

func TestInsertAndRemoveInZone(t *testing.T) {
	z := Zone{Top: 2, Left: 0, Bottom: 5, Right: 0}

	assert.Equal(t, Zone{Top: 4, Left: 0, Bottom: 7, Right: 0}, insertInZone(z, AxisRow, 1, 2))
	assert.Equal(t, Zone{Top: 2, Left: 0, Bottom: 7, Right: 0}, insertInZone(z, AxisRow, 3, 2))
	assert.Equal(t, z, insertInZone(z, AxisRow, 6, 2))

	shrunk, ok := removeFromZone(z, AxisRow, []int{0, 3, 4})
	require.True(t, ok)
	assert.Equal(t, Zone{Top: 1, Left: 0, Bottom: 2, Right: 0}, shrunk)

	_, ok = removeFromZone(z, AxisRow, []int{1, 2, 3, 4, 5, 6})
	assert.False(t, ok)
}

func TestRecomputeZones(t *testing.T) {
	got := RecomputeZones(
		[]Zone{{Top: 0, Left: 0, Bottom: 2, Right: 2}},
		[]Zone{ZoneOf(1, 1)},
	)
	want := []Zone{
		{Top: 0, Left: 0, Bottom: 2, Right: 0},
		{Top: 0, Left: 1, Bottom: 0, Right: 1},
		{Top: 2, Left: 1, Bottom: 2, Right: 1},
		{Top: 0, Left: 2, Bottom: 2, Right: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RecomputeZones mismatch (-want +got):\n%s", diff)
	}

	merged := RecomputeZones([]Zone{ZoneOf(0, 0), ZoneOf(1, 0), {Top: 1, Left: 0, Bottom: 1, Right: 1}}, nil)
	assert.Equal(t, []Zone{{Top: 0, Left: 0, Bottom: 1, Right: 1}}, merged)

	assert.Nil(t, RecomputeZones([]Zone{ZoneOf(0, 0)}, []Zone{ZoneOf(0, 0)}))
}
