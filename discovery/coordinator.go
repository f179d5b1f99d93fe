package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"mydiscovery/interfaces"
	"mydiscovery/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	// slotPrefix namespaces discovery state inside a shared session.
	slotPrefix = "_yadis_services_"
	// DefaultSlotSuffix identifies the default discovery flow in the session.
	DefaultSlotSuffix = "auth"
)

// DiscoverFunc resolves an identifier URL to the URL left after any
// redirects and the prioritized candidate endpoints. Zero candidates is
// a valid result, not an error. Network behavior, timeouts and retries
// belong to the implementation; the coordinator never retries.
type DiscoverFunc[S any] func(ctx context.Context, url string) (resolvedURL string, candidates []S, err error)

// Coordinator decides, per request, whether to reuse the queue stored
// in the session, run discovery, advance the queue, or tear it down.
// It keeps no state of its own beyond the session, the URL it
// discovers for, and the slot suffix; one instance is a stateless
// facade over the session and is built per request.
type Coordinator[S any] struct {
	session    interfaces.Session
	url        string
	slotSuffix string
	decode     EndpointDecoder[S]
	logger     log.Logger
}

// Option configures a Coordinator.
type Option[S any] func(*Coordinator[S])

// WithSlotSuffix disambiguates concurrent discovery flows sharing one
// session. Defaults to DefaultSlotSuffix.
func WithSlotSuffix[S any](suffix string) Option[S] {
	return func(c *Coordinator[S]) {
		c.slotSuffix = suffix
	}
}

// WithEndpointDecoder overrides how candidates read back from a generic
// session store are converted into S. Defaults to DecodeEndpoint.
func WithEndpointDecoder[S any](decode EndpointDecoder[S]) Option[S] {
	return func(c *Coordinator[S]) {
		c.decode = decode
	}
}

// WithLogger sets the coordinator logger. Defaults to a nop logger.
func WithLogger[S any](logger log.Logger) Option[S] {
	return func(c *Coordinator[S]) {
		c.logger = logger
	}
}

// NewCoordinator creates a coordinator discovering for url, persisting
// progress in session.
func NewCoordinator[S any](session interfaces.Session, url string, options ...Option[S]) *Coordinator[S] {
	c := &Coordinator[S]{
		session:    session,
		url:        url,
		slotSuffix: DefaultSlotSuffix,
		decode:     DecodeEndpoint[S],
		logger:     log.NewNopLogger(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = log.WithPrefix(c.logger, "component", "Coordinator")
	return c
}

// SessionKey returns the session slot this coordinator's queue lives under.
func (c *Coordinator[S]) SessionKey() string {
	return slotPrefix + c.slotSuffix
}

// NextEndpoint returns the next candidate endpoint for this URL and
// session, running discover only when the session holds no usable
// queue. An exhausted stored queue is destroyed first so a retry runs a
// fresh discovery. Returns:
// 1) (candidate, true, nil) when a candidate is available;
// 2) (zero, false, nil) when discovery yields no candidates — a normal
// terminal outcome, not an error;
// 3) (zero, false, err) on a discover fault (propagated unchanged) or
// a session store fault.
func (c *Coordinator[S]) NextEndpoint(ctx context.Context, discover DiscoverFunc[S]) (S, bool, error) {
	var zero S

	queue, err := c.loadQueue(ctx, false)
	if err != nil {
		return zero, false, err
	}

	if queue != nil && queue.Remaining() == 0 {
		// The previous attempt ran out of candidates; drop the stale
		// queue so this retry runs discovery again.
		if err := c.DestroyQueue(ctx, false); err != nil {
			return zero, false, err
		}
		queue = nil
	}

	if queue == nil {
		resolvedURL, candidates, err := discover(ctx, c.url)
		if err != nil {
			return zero, false, err
		}
		queue, err = c.CreateQueue(ctx, candidates, resolvedURL)
		if err != nil {
			return zero, false, err
		}
	}

	if queue == nil {
		level.Debug(c.logger).Log("msg", "discovery yielded no endpoints", "url", c.url)
		return zero, false, nil
	}

	endpoint, err := queue.Advance()
	if err != nil {
		return zero, false, err
	}
	if err := queue.Persist(ctx, c.session); err != nil {
		return zero, false, err
	}
	level.Debug(c.logger).Log("msg", "handed out endpoint", "url", c.url, "remaining", queue.Remaining())
	return endpoint, true, nil
}

// Cleanup removes the stored queue and returns the most recently
// handed-out candidate, if any. It is the terminal step of a flow: call
// it once the caller succeeds with the current endpoint or permanently
// gives up. force makes a queue stored for a different URL eligible for
// removal too.
func (c *Coordinator[S]) Cleanup(ctx context.Context, force bool) (S, bool, error) {
	var zero S

	queue, err := c.loadQueue(ctx, force)
	if err != nil {
		return zero, false, err
	}
	if queue == nil {
		return zero, false, nil
	}

	endpoint, started := queue.Current()
	if err := c.DestroyQueue(ctx, force); err != nil {
		return zero, false, err
	}
	level.Debug(c.logger).Log("msg", "cleaned up discovery state", "url", c.url, "started", started)
	return endpoint, started, nil
}

// CreateQueue wraps candidates in a new queue for this coordinator's
// URL and persists it. Returns:
// 1) (queue, nil) on success;
// 2) (nil, nil) for zero candidates — nothing worth storing;
// 3) (nil, already_exists) when a queue for this URL is already stored;
// the flow was started twice without Cleanup, a caller contract
// violation.
func (c *Coordinator[S]) CreateQueue(ctx context.Context, candidates []S, resolvedURL string) (*Queue[S], error) {
	existing, err := c.loadQueue(ctx, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, service.NewAlreadyExistsError(
			fmt.Sprintf("there is already a %q queue for %q", c.SessionKey(), c.url), nil)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	queue := NewQueue(c.url, resolvedURL, candidates, c.SessionKey())
	if err := queue.Persist(ctx, c.session); err != nil {
		return nil, err
	}
	return queue, nil
}

// DestroyQueue deletes the stored queue. It silently does nothing when
// the slot is empty or, unless force is set, when the stored queue
// belongs to a different URL.
func (c *Coordinator[S]) DestroyQueue(ctx context.Context, force bool) error {
	queue, err := c.loadQueue(ctx, force)
	if err != nil {
		return err
	}
	if queue == nil {
		return nil
	}

	if err := c.session.Delete(ctx, c.SessionKey()); err != nil {
		return service.NewInternalServerError("failed to delete queue from session", err)
	}
	return nil
}

// loadQueue reads this coordinator's slot. An empty slot yields
// (nil, nil). A generic record left by a serialization-only session
// store is rebuilt via queueFromRecord. Unless force is set, a queue
// discovered for a different URL is ignored as if the slot were empty.
func (c *Coordinator[S]) loadQueue(ctx context.Context, force bool) (*Queue[S], error) {
	raw, err := c.session.Get(ctx, c.SessionKey())
	if err != nil {
		if service.IsEntityNotFoundError(err) {
			return nil, nil
		}
		return nil, service.NewInternalServerError("failed to read queue from session", err)
	}

	queue, err := c.decodeStored(raw)
	if err != nil {
		return nil, err
	}
	if queue == nil {
		return nil, nil
	}

	if force || queue.MatchesURL(c.url) {
		return queue, nil
	}
	// The slot holds a queue for a different discovery target; leave it alone.
	return nil, nil
}

// decodeStored normalizes the session value into a *Queue[S]: rich
// values pass through, JSON bytes and generic maps go through the
// record decode path.
func (c *Coordinator[S]) decodeStored(raw any) (*Queue[S], error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case *Queue[S]:
		return value, nil
	case map[string]any:
		return queueFromRecord(value, c.decode)
	case []byte:
		var rec map[string]any
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil, service.NewBadParameterError("stored queue is not a JSON record", err)
		}
		return queueFromRecord(rec, c.decode)
	default:
		return nil, service.NewBadParameterError(
			fmt.Sprintf("stored queue has unsupported type %T", raw), nil)
	}
}
