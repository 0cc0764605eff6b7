package face

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestAddFindByIDAndAddr(t *testing.T) {
	tbl := NewTable(4, prometheus.NewRegistry())
	f, err := tbl.Add("10.0.0.1:9695")
	require.NoError(t, err)
	require.True(t, tbl.IsUp(f.ID))

	byID, ok := tbl.FindByID(f.ID)
	require.True(t, ok)
	require.Same(t, f, byID)

	byAddr, ok := tbl.FindByAddr("10.0.0.1:9695")
	require.True(t, ok)
	require.Same(t, f, byAddr)
}

func TestAddDuplicateAddrFails(t *testing.T) {
	tbl := NewTable(4, prometheus.NewRegistry())
	_, err := tbl.Add("a")
	require.NoError(t, err)
	_, err = tbl.Add("a")
	require.Error(t, err)
}

func TestCapacityExceeded(t *testing.T) {
	tbl := NewTable(1, prometheus.NewRegistry())
	_, err := tbl.Add("a")
	require.NoError(t, err)
	_, err = tbl.Add("b")
	require.Error(t, err)
}

func TestSetUpDownAffectsUpFaces(t *testing.T) {
	tbl := NewTable(4, prometheus.NewRegistry())
	f1, _ := tbl.Add("a")
	f2, _ := tbl.Add("b")

	require.ElementsMatch(t, []ID{f1.ID, f2.ID}, tbl.UpFaces())

	tbl.SetUp(f1.ID, false)
	require.False(t, tbl.IsUp(f1.ID))
	require.ElementsMatch(t, []ID{f2.ID}, tbl.UpFaces())
}

func TestRecordRxTxAndAggregate(t *testing.T) {
	tbl := NewTable(4, prometheus.NewRegistry())
	f1, _ := tbl.Add("a")
	f2, _ := tbl.Add("b")

	tbl.RecordRx(f1.ID, 100)
	tbl.RecordRx(f1.ID, 50)
	tbl.RecordTx(f2.ID, 200)

	agg := tbl.StatsAggregate()
	require.Equal(t, uint64(2), agg.RxPackets)
	require.Equal(t, uint64(150), agg.RxBytes)
	require.Equal(t, uint64(1), agg.TxPackets)
	require.Equal(t, uint64(200), agg.TxBytes)
}

func TestRemoveClearsLookups(t *testing.T) {
	tbl := NewTable(4, prometheus.NewRegistry())
	f, _ := tbl.Add("a")
	require.NoError(t, tbl.Remove(f.ID))

	_, ok := tbl.FindByID(f.ID)
	require.False(t, ok)
	require.False(t, tbl.IsUp(f.ID))
}

func TestHelloDownFlagIsExternallySettable(t *testing.T) {
	tbl := NewTable(4, prometheus.NewRegistry())
	f, _ := tbl.Add("a")
	require.False(t, f.HelloDown.Load())
	f.HelloDown.Store(true)
	require.True(t, f.HelloDown.Load())
}
