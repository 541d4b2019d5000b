package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redditmcp/redditmcp/pkg/mcp"
)

func factory() InstanceFactory {
	return func(sessionID string, creds mcp.Credentials) *mcp.Instance {
		return mcp.NewInstance(sessionID, creds, mcp.Registries{})
	}
}

func newTestTable(t *testing.T, opts ...TableOption) *Table {
	t.Helper()
	table := NewTable(factory(), opts...)
	t.Cleanup(table.Shutdown)
	return table
}

func creds(token string) mcp.Credentials {
	return mcp.Credentials{UserID: "spez", UpstreamAccessToken: token}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	table := newTestTable(t)

	sess := table.Create(creds("tok-1"))
	require.NotEmpty(t, sess.ID())
	assert.Equal(t, 1, table.Len())

	got, err := table.Get(sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, "tok-1", got.Instance().Credentials().UpstreamAccessToken)
}

func TestGetUnknownSession(t *testing.T) {
	t.Parallel()
	table := newTestTable(t)

	_, err := table.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBindKeepsInstanceForSameCredentials(t *testing.T) {
	t.Parallel()
	table := newTestTable(t)

	sess := table.Create(creds("tok-1"))
	inst := sess.Instance()

	bound, err := table.Bind(sess.ID(), creds("tok-1"))
	require.NoError(t, err)
	assert.Same(t, inst, bound.Instance())
}

func TestBindRebuildsInstanceForFresherCredentials(t *testing.T) {
	t.Parallel()
	table := newTestTable(t)

	sess := table.Create(creds("tok-1"))
	old := sess.Instance()

	bound, err := table.Bind(sess.ID(), creds("tok-2"))
	require.NoError(t, err)
	assert.NotSame(t, old, bound.Instance())
	assert.Equal(t, "tok-2", bound.Instance().Credentials().UpstreamAccessToken)
	// Session id survives the rebuild.
	assert.Equal(t, sess.ID(), bound.ID())
}

func TestDelete(t *testing.T) {
	t.Parallel()
	table := newTestTable(t)

	sess := table.Create(creds("tok-1"))
	table.Delete(sess.ID())

	_, err := table.Get(sess.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, table.Len())

	// Deleting twice is harmless.
	table.Delete(sess.ID())
}

func TestJanitorEvictsIdleSessions(t *testing.T) {
	t.Parallel()
	table := newTestTable(t,
		WithTTL(30*time.Millisecond),
		WithJanitorInterval(10*time.Millisecond),
	)

	table.Create(creds("tok-1"))

	// Poll Len rather than Get: a lookup would refresh the activity time
	// and keep the session alive forever.
	require.Eventually(t, func() bool {
		return table.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestExpiredSessionRejectedBeforeJanitor(t *testing.T) {
	t.Parallel()
	table := newTestTable(t,
		WithTTL(50*time.Millisecond),
		WithJanitorInterval(time.Hour),
	)

	sess := table.Create(creds("tok-1"))
	time.Sleep(120 * time.Millisecond)

	_, err := table.Bind(sess.ID(), creds("tok-1"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, table.Len())
}

func TestExpiredSessionRejectedOnGet(t *testing.T) {
	t.Parallel()
	table := newTestTable(t,
		WithTTL(50*time.Millisecond),
		WithJanitorInterval(time.Hour),
	)

	sess := table.Create(creds("tok-1"))
	time.Sleep(120 * time.Millisecond)

	_, err := table.Get(sess.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, table.Len())
}

func TestTouchedSessionSurvivesJanitor(t *testing.T) {
	t.Parallel()
	table := newTestTable(t,
		WithTTL(80*time.Millisecond),
		WithJanitorInterval(10*time.Millisecond),
	)

	sess := table.Create(creds("tok-1"))

	// Keep it warm past several janitor passes.
	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		_, err := table.Get(sess.ID())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, table.Len())
}

func TestShutdownClosesAllSessions(t *testing.T) {
	t.Parallel()
	table := NewTable(factory())

	table.Create(creds("tok-1"))
	table.Create(creds("tok-2"))
	require.Equal(t, 2, table.Len())

	table.Shutdown()
	assert.Zero(t, table.Len())
}
