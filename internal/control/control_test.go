package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cicnx/icnfwd/pkg/face"
	"github.com/cicnx/icnfwd/pkg/fib"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	faces := face.NewTable(16, nil)
	f := fib.New([16]byte{9}, 64, 32)
	return New(faces, f)
}

func TestValidateSymbolicName(t *testing.T) {
	require.NoError(t, ValidateSymbolicName("conn1"))
	require.Error(t, ValidateSymbolicName("1conn"))
	require.Error(t, ValidateSymbolicName("conn-1"))
	require.Error(t, ValidateSymbolicName(""))
}

func TestAddAndListConnections(t *testing.T) {
	c := newTestController(t)
	id, err := c.AddConnection("conn1", "10.0.0.1:9695", Connection)
	require.NoError(t, err)
	require.NotZero(t, id)

	list := c.ListConnections()
	require.Len(t, list, 1)
	require.Equal(t, "conn1", list[0].Name)
	require.True(t, list[0].Up)
	require.NotEqual(t, list[0].ConnID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestRunIDIsStampedPerController(t *testing.T) {
	a := newTestController(t)
	b := newTestController(t)
	require.NotEqual(t, a.RunID, b.RunID)
}

func TestAddConnectionRejectsDuplicateSymbolicName(t *testing.T) {
	c := newTestController(t)
	_, err := c.AddConnection("conn1", "10.0.0.1:9695", Connection)
	require.NoError(t, err)
	_, err = c.AddConnection("conn1", "10.0.0.2:9695", Connection)
	require.Error(t, err)
}

func TestAddRouteResolvesConnectionAndInstallsFIBEntry(t *testing.T) {
	c := newTestController(t)
	_, err := c.AddConnection("conn1", "10.0.0.1:9695", Connection)
	require.NoError(t, err)

	require.NoError(t, c.AddRoute("route1", "ccnx:/icn/test", "conn1", 1))

	routes := c.ListRoutes()
	require.Len(t, routes, 1)
	require.Equal(t, "route1", routes[0].Name)
}

func TestAddRouteRejectsUnknownConnection(t *testing.T) {
	c := newTestController(t)
	err := c.AddRoute("route1", "ccnx:/icn/test", "missing", 1)
	require.Error(t, err)
}

func TestRemoveConnectionAndRoute(t *testing.T) {
	c := newTestController(t)
	_, err := c.AddConnection("conn1", "10.0.0.1:9695", Connection)
	require.NoError(t, err)
	require.NoError(t, c.AddRoute("route1", "ccnx:/icn/test", "conn1", 1))

	require.NoError(t, c.RemoveRoute("route1"))
	require.Empty(t, c.ListRoutes())

	require.NoError(t, c.RemoveConnection("conn1"))
	require.Empty(t, c.ListConnections())
}

func TestRemoveUnknownReturnsNotFound(t *testing.T) {
	c := newTestController(t)
	require.Error(t, c.RemoveConnection("nope"))
	require.Error(t, c.RemoveRoute("nope"))
}

func TestCachePolicyDefaultsOnAndToggles(t *testing.T) {
	c := newTestController(t)
	require.True(t, c.Policy().Serve)
	require.True(t, c.Policy().Store)

	c.SetCacheServe(false)
	c.SetCacheStore(false)
	require.False(t, c.Policy().Serve)
	require.False(t, c.Policy().Store)
}
