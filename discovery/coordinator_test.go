package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"mydiscovery/adapters/memsession"
	"mydiscovery/domain"
	"mydiscovery/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userURL = "https://user.example/"
const resolvedURL = "https://id.example/x"

// staticDiscover returns the same result on every call and counts calls.
func staticDiscover(calls *int, candidates ...domain.Endpoint) DiscoverFunc[domain.Endpoint] {
	return func(ctx context.Context, url string) (string, []domain.Endpoint, error) {
		*calls++
		return resolvedURL, candidates, nil
	}
}

func TestCoordinator_SessionKey(t *testing.T) {
	sess := memsession.New()

	c := NewCoordinator[domain.Endpoint](sess, userURL)
	assert.Equal(t, "_yadis_services_auth", c.SessionKey())

	c = NewCoordinator(sess, userURL, WithSlotSuffix[domain.Endpoint]("signup"))
	assert.Equal(t, "_yadis_services_signup", c.SessionKey())
}

func TestCoordinator_NextEndpoint_FallbackAndRediscovery(t *testing.T) {
	ctx := context.Background()
	sess := memsession.New()
	s1, s2 := endpoint("one"), endpoint("two")
	calls := 0
	discover := staticDiscover(&calls, s1, s2)

	// Fresh session: discovery runs once and the first candidate comes back.
	got, ok, err := NewCoordinator[domain.Endpoint](sess, userURL).NextEndpoint(ctx, discover)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s1, got)
	assert.Equal(t, 1, calls)

	// The first candidate failed; the next request falls back to the
	// second without rerunning discovery.
	got, ok, err = NewCoordinator[domain.Endpoint](sess, userURL).NextEndpoint(ctx, discover)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s2, got)
	assert.Equal(t, 1, calls)

	// Queue exhausted: the stale queue collapses and discovery runs again.
	got, ok, err = NewCoordinator[domain.Endpoint](sess, userURL).NextEndpoint(ctx, discover)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s1, got)
	assert.Equal(t, 2, calls)
}

func TestCoordinator_NextEndpoint_NoCandidates(t *testing.T) {
	ctx := context.Background()
	sess := memsession.New()
	calls := 0

	c := NewCoordinator[domain.Endpoint](sess, userURL)
	_, ok, err := c.NextEndpoint(ctx, staticDiscover(&calls))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)

	// No session slot is created for an empty result.
	_, err = sess.Get(ctx, c.SessionKey())
	require.Error(t, err)
	assert.True(t, service.IsEntityNotFoundError(err))
}

func TestCoordinator_NextEndpoint_DiscoverFaultPropagatesUnchanged(t *testing.T) {
	ctx := context.Background()
	sess := memsession.New()
	fault := errors.New("fetch failed")

	c := NewCoordinator[domain.Endpoint](sess, userURL)
	_, ok, err := c.NextEndpoint(ctx, func(ctx context.Context, url string) (string, []domain.Endpoint, error) {
		return "", nil, fault
	})
	assert.False(t, ok)
	assert.Same(t, fault, err)

	_, err = sess.Get(ctx, c.SessionKey())
	assert.True(t, service.IsEntityNotFoundError(err))
}

func TestCoordinator_CreateQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("twice without cleanup fails with already_exists", func(t *testing.T) {
		sess := memsession.New()
		c := NewCoordinator[domain.Endpoint](sess, userURL)

		q, err := c.CreateQueue(ctx, []domain.Endpoint{endpoint("one")}, resolvedURL)
		require.NoError(t, err)
		require.NotNil(t, q)

		_, err = c.CreateQueue(ctx, []domain.Endpoint{endpoint("two")}, resolvedURL)
		require.Error(t, err)
		assert.True(t, service.IsAlreadyExistsError(err))
	})

	t.Run("no candidates creates nothing", func(t *testing.T) {
		sess := memsession.New()
		c := NewCoordinator[domain.Endpoint](sess, userURL)

		q, err := c.CreateQueue(ctx, nil, resolvedURL)
		require.NoError(t, err)
		assert.Nil(t, q)

		_, err = sess.Get(ctx, c.SessionKey())
		assert.True(t, service.IsEntityNotFoundError(err))
	})

	t.Run("replaces a queue stored for a different URL", func(t *testing.T) {
		sess := memsession.New()
		other := NewQueue("https://someone-else.example/", "https://elsewhere.example/",
			[]domain.Endpoint{endpoint("theirs")}, "_yadis_services_auth")
		require.NoError(t, other.Persist(ctx, sess))

		c := NewCoordinator[domain.Endpoint](sess, userURL)
		q, err := c.CreateQueue(ctx, []domain.Endpoint{endpoint("one")}, resolvedURL)
		require.NoError(t, err)
		require.NotNil(t, q)

		stored, err := sess.Get(ctx, c.SessionKey())
		require.NoError(t, err)
		assert.Same(t, q, stored)
	})
}

func TestCoordinator_Cleanup(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the handed-out candidate and removes the slot", func(t *testing.T) {
		sess := memsession.New()
		s1 := endpoint("one")
		calls := 0
		c := NewCoordinator[domain.Endpoint](sess, userURL)

		got, ok, err := c.NextEndpoint(ctx, staticDiscover(&calls, s1))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, s1, got)

		cleaned, ok, err := c.Cleanup(ctx, false)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, s1, cleaned)

		_, err = sess.Get(ctx, c.SessionKey())
		assert.True(t, service.IsEntityNotFoundError(err))

		// A second cleanup finds nothing.
		_, ok, err = c.Cleanup(ctx, false)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("before any advance still removes the slot", func(t *testing.T) {
		sess := memsession.New()
		c := NewCoordinator[domain.Endpoint](sess, userURL)
		_, err := c.CreateQueue(ctx, []domain.Endpoint{endpoint("one")}, resolvedURL)
		require.NoError(t, err)

		_, ok, err := c.Cleanup(ctx, false)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = sess.Get(ctx, c.SessionKey())
		assert.True(t, service.IsEntityNotFoundError(err))
	})

	t.Run("force removes a queue stored for a different URL", func(t *testing.T) {
		sess := memsession.New()
		other := NewQueue("https://someone-else.example/", "https://elsewhere.example/",
			[]domain.Endpoint{endpoint("theirs")}, "_yadis_services_auth")
		_, err := other.Advance()
		require.NoError(t, err)
		require.NoError(t, other.Persist(ctx, sess))

		c := NewCoordinator[domain.Endpoint](sess, userURL)

		_, ok, err := c.Cleanup(ctx, false)
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = sess.Get(ctx, c.SessionKey())
		require.NoError(t, err) // mismatched queue untouched without force

		cleaned, ok, err := c.Cleanup(ctx, true)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, endpoint("theirs"), cleaned)
		_, err = sess.Get(ctx, c.SessionKey())
		assert.True(t, service.IsEntityNotFoundError(err))
	})
}

func TestCoordinator_LoadQueue_URLOwnership(t *testing.T) {
	ctx := context.Background()
	sess := memsession.New()
	other := NewQueue("https://someone-else.example/", "https://elsewhere.example/",
		[]domain.Endpoint{endpoint("theirs")}, "_yadis_services_auth")
	require.NoError(t, other.Persist(ctx, sess))

	c := NewCoordinator[domain.Endpoint](sess, userURL)

	q, err := c.loadQueue(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, q)

	q, err = c.loadQueue(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "https://someone-else.example/", q.StartingURL())
}

func TestCoordinator_ResumesFromGenericRecord(t *testing.T) {
	// A serialization-only session store hands back decoded JSON instead
	// of the stored *Queue; the flow resumes without rerunning discovery.
	ctx := context.Background()
	sess := memsession.New()
	s1, s2 := endpoint("one"), endpoint("two")
	calls := 0
	discover := staticDiscover(&calls, s1, s2)

	c := NewCoordinator[domain.Endpoint](sess, userURL)
	got, ok, err := c.NextEndpoint(ctx, discover)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s1, got)

	// Degrade the stored queue to its generic JSON form.
	stored, err := sess.Get(ctx, c.SessionKey())
	require.NoError(t, err)
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	require.NoError(t, sess.Set(ctx, c.SessionKey(), rec))

	got, ok, err = c.NextEndpoint(ctx, discover)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s2, got)
	assert.Equal(t, 1, calls)

	cleaned, ok, err := c.Cleanup(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, s2, cleaned)
}
