package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

func dailySeries(start time.Time, n int) []models.PricePoint {
	out := make([]models.PricePoint, n)
	for i := range out {
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Price: 100 + float64(i)}
	}
	return out
}

func TestNormalize_SortsDedupesAndDropsMissing(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	in := []models.PricePoint{
		{Date: d(3), Price: 3},
		{Date: d(1), Price: 1},
		{Date: d(2), Price: math.NaN()},
		{Date: d(3), Price: 33},
		{Date: d(4), Price: math.Inf(1)},
	}

	out, err := Normalize(in)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, d(1), out[0].Date)
	assert.Equal(t, 33.0, out[1].Price)
	assert.True(t, IsOrdered(out))
}

func TestNormalize_Empty(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrEmptySeries)

	_, err = Normalize([]models.PricePoint{{Date: time.Now(), Price: math.NaN()}})
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestWindow_KeepsLastYears(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	points := dailySeries(start, 366*3)
	last := points[len(points)-1].Date

	w, err := Window(points, 1)

	require.NoError(t, err)
	assert.Equal(t, last, w[len(w)-1].Date)
	assert.False(t, w[0].Date.Before(last.AddDate(-1, 0, 0)))
	assert.Equal(t, last.AddDate(-1, 0, 0), w[0].Date)
}

func TestWindow_LeapDayClampsToFeb28(t *testing.T) {
	points := dailySeries(time.Date(2019, 2, 20, 0, 0, 0, 0, time.UTC), 2000)
	end := 0
	for i, p := range points {
		if p.Date.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
			end = i + 1
		}
	}
	require.NotZero(t, end)

	w, err := Window(points[:end], 5)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 2, 28, 0, 0, 0, 0, time.UTC), w[0].Date)
}

func TestWindow_RejectsUnordered(t *testing.T) {
	points := dailySeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 5)
	points[1], points[3] = points[3], points[1]
	_, err := Window(points, 1)
	assert.ErrorIs(t, err, ErrUnordered)
}

func TestWindow_LongerThanSeries(t *testing.T) {
	points := dailySeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 30)
	w, err := Window(points, 25)
	require.NoError(t, err)
	assert.Len(t, w, 30)
}

func TestWindow_InvalidYears(t *testing.T) {
	_, err := Window(dailySeries(time.Now(), 5), 0)
	assert.Error(t, err)
}

func TestSplit_Disjoint(t *testing.T) {
	window := dailySeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 100)

	s, err := Split(window, 0.9)

	require.NoError(t, err)
	assert.Len(t, s.Train, 90)
	assert.Len(t, s.Test, 10)
	assert.Equal(t, len(window), len(s.Train)+len(s.Test))
	assert.True(t, s.Train[len(s.Train)-1].Date.Before(s.Test[0].Date))
}

func TestSplit_FloorsPartitionPoint(t *testing.T) {
	window := dailySeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 15)
	s, err := Split(window, 0.9)
	require.NoError(t, err)
	assert.Len(t, s.Train, 13)
	assert.Len(t, s.Test, 2)
}

func TestSplit_EmptySegment(t *testing.T) {
	window := dailySeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 5)

	_, err := Split(window, 0.1)
	assert.ErrorIs(t, err, ErrEmptySegment)

	_, err = Split(window, 1.5)
	assert.Error(t, err)
}
