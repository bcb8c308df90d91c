package ptpfilter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicFilterInitialConfidenceRange(t *testing.T) {
	f := NewBasicFilter(0.1)
	require.Equal(t, 1.0, f.ConfidenceRange())
}

func TestBasicFilterShrinksTowardQuietSamples(t *testing.T) {
	f := NewBasicFilter(0.5)
	out := f.Update(0.1)
	require.InDelta(t, 0.05, out, 1e-9)
	require.Less(t, f.ConfidenceRange(), 1.0)
}

func TestBasicFilterDoublesRangeOnOutlier(t *testing.T) {
	f := NewBasicFilter(0.1)
	out := f.Update(5.0) // exceeds confidence range of 1.0
	require.Equal(t, 2.0, f.ConfidenceRange())
	// clamped to the new range before scaling by gain
	require.InDelta(t, 0.2, out, 1e-9)
}

func TestBasicFilterClampsNegativeOutlier(t *testing.T) {
	f := NewBasicFilter(0.1)
	out := f.Update(-5.0)
	require.Equal(t, 2.0, f.ConfidenceRange())
	require.InDelta(t, -0.2, out, 1e-9)
}

func TestBasicFilterResetRestoresInitialRange(t *testing.T) {
	f := NewBasicFilter(0.1)
	f.Update(5.0)
	f.Reset()
	require.Equal(t, 1.0, f.ConfidenceRange())
}
