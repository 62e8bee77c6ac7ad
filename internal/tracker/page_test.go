package tracker

import (
	"testing"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/stretchr/testify/require"
)

func TestNormalizePageSize(t *testing.T) {
	require.Equal(t, 5, NormalizePageSize(5))
	require.Equal(t, 100, NormalizePageSize(100))
	require.Equal(t, PageSizeAll, NormalizePageSize(PageSizeAll))
	require.Equal(t, DefaultPageSize, NormalizePageSize(7))
	require.Equal(t, DefaultPageSize, NormalizePageSize(0))
}

func TestPaginate(t *testing.T) {
	p, lo, hi := Paginate(23, 3, 10)
	require.Equal(t, Page{Number: 3, Size: 10, TotalItems: 23, TotalPages: 3}, p)
	require.Equal(t, 20, lo)
	require.Equal(t, 23, hi)

	p, lo, hi = Paginate(23, 99, 10)
	require.Equal(t, 3, p.Number)
	require.Equal(t, 20, lo)
	require.Equal(t, 23, hi)

	p, lo, hi = Paginate(0, 0, 5)
	require.Equal(t, 1, p.TotalPages)
	require.Equal(t, 0, lo)
	require.Equal(t, 0, hi)

	p, lo, hi = Paginate(23, 2, PageSizeAll)
	require.Equal(t, 1, p.Number)
	require.Equal(t, 0, lo)
	require.Equal(t, 23, hi)
}

func TestBoard_PageCompleted(t *testing.T) {
	var rs []*models.TruckRecord
	for i := 1; i <= 12; i++ {
		rs = append(rs, &models.TruckRecord{SerialNumber: i, FinalWeightAt: at(i)})
	}
	b := Classify(rs).PageCompleted(2, 5)
	require.Len(t, b.Completed, 5)
	require.Equal(t, 7, b.Completed[0].Record.SerialNumber)
	require.Equal(t, 3, b.CompletedPage.TotalPages)
}
