package mux

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/livesub/errors"
	"github.com/c360/livesub/ratelimit"
)

// Callback receives snapshots for one registration. A nil payload means
// the resource does not exist, or a channel error was recovered for a
// registration that opted into error recovery.
type Callback[V any] func(*V)

// Multiplexer guarantees at most one physical channel per key and fans
// updates out to any number of logical registrations, each with its own
// filter, debounce and error policy.
type Multiplexer[V any] struct {
	src     Source[V]
	grace   time.Duration
	limiter ratelimit.Limiter
	logger  *slog.Logger
	filters map[CallbackType]FilterFunc[V]
	metrics *muxMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	keys   map[string]*keyState[V]
	closed bool
}

// keyState exists iff a physical channel is open or draining for its key.
type keyState[V any] struct {
	key     string
	channel Channel

	// dispatchMu serializes all synchronous delivery for this key, so a
	// registration added mid-dispatch cannot observe the same event twice
	// or out of order.
	dispatchMu sync.Mutex

	regs map[string]*registration[V]

	// latest snapshot tri-state: hasLatest=false means nothing received
	// yet; latest==nil with hasLatest=true means not-found.
	latest    *V
	hasLatest bool
	seq       uint64

	errCount int

	teardown    *time.Timer
	teardownGen uint64
}

type registration[V any] struct {
	id   string
	cb   Callback[V]
	opts *subscribeOptions

	// deliveredSeq is the highest update sequence claimed for this
	// registration, used to keep immediate replay and live dispatch from
	// double-delivering.
	deliveredSeq uint64

	pending    *V
	pendingSet bool
	timer      *time.Timer
	timerGen   uint64

	removed bool
}

// New creates a multiplexer over src. The zero configuration uses a 30s
// grace period, no rate limiting, slog.Default() and no metrics.
func New[V any](src Source[V], options ...Option[V]) (*Multiplexer[V], error) {
	if src == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("source must not be nil"),
			"Multiplexer", "New", "validate source")
	}

	opts := applyOptions(options...)

	var metrics *muxMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newMuxMetrics(opts.metricsReg)
		if err != nil {
			return nil, errors.WrapTransient(err, "Multiplexer", "New", "metrics registration")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Multiplexer[V]{
		src:     src,
		grace:   opts.gracePeriod,
		limiter: opts.limiter,
		logger:  opts.logger,
		filters: opts.filters,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		keys:    make(map[string]*keyState[V]),
	}, nil
}

// Subscribe registers cb for updates on key, opening the physical channel
// if key has none. If a snapshot is already known for key it is delivered
// to cb synchronously before Subscribe returns, subject to cb's filter.
//
// The returned Subscription's Unsubscribe is idempotent and never panics.
func (m *Multiplexer[V]) Subscribe(key string, cb Callback[V], options ...SubscribeOption) (*Subscription, error) {
	if key == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidKey, "Multiplexer", "Subscribe", "validate key")
	}
	if cb == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("callback must not be nil"),
			"Multiplexer", "Subscribe", "validate callback")
	}

	opts := applySubscribeOptions(options...)
	if !opts.callbackType.valid() {
		return nil, errors.WrapInvalid(fmt.Errorf("unknown callback type %d", opts.callbackType),
			"Multiplexer", "Subscribe", "validate callback type")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrShuttingDown, "Multiplexer", "Subscribe", "check lifecycle")
	}

	st, ok := m.keys[key]
	if !ok {
		if !m.limiter.Allow(key) {
			reset := m.limiter.TimeUntilReset(key)
			m.mu.Unlock()
			if m.metrics != nil {
				m.metrics.rateLimited.Inc()
			}
			return nil, errors.WrapTransient(
				&errors.RateLimitError{Key: key, ResetAfter: reset},
				"Multiplexer", "Subscribe", "rate limit check")
		}
		m.limiter.RecordRequest(key)

		ch, err := m.src.Open(m.ctx, key,
			func(v *V) { m.handleUpdate(key, v) },
			func(err error) { m.handleError(key, err) },
		)
		if err != nil {
			m.mu.Unlock()
			return nil, errors.WrapTransient(
				fmt.Errorf("%w: %w", errors.ErrSubscriptionFailed, err),
				"Multiplexer", "Subscribe", "channel open")
		}

		st = &keyState[V]{
			key:     key,
			channel: ch,
			regs:    make(map[string]*registration[V]),
		}
		m.keys[key] = st

		if m.metrics != nil {
			m.metrics.channelsOpen.Inc()
			m.metrics.channelsOpened.Inc()
		}
		m.logger.Debug("opened physical channel", "key", key)
	} else if st.teardown != nil {
		// Subscriber arrived inside the grace window; keep the channel.
		st.teardown.Stop()
		st.teardown = nil
		st.teardownGen++
		if m.metrics != nil {
			m.metrics.graceReuses.Inc()
		}
		m.logger.Debug("reused draining channel", "key", key)
	}

	reg := &registration[V]{
		id:   uuid.NewString(),
		cb:   cb,
		opts: opts,
	}
	st.regs[reg.id] = reg
	needReplay := st.hasLatest
	m.mu.Unlock()

	if needReplay {
		m.replay(st, reg)
	}

	return &Subscription{
		id:         reg.id,
		key:        key,
		maxRetries: opts.maxRetries,
		cancel:     func() { m.unsubscribe(key, st, reg) },
	}, nil
}

// replay delivers the latest known snapshot to a fresh registration,
// exactly once, without racing live dispatch for the same key.
func (m *Multiplexer[V]) replay(st *keyState[V], reg *registration[V]) {
	st.dispatchMu.Lock()
	defer st.dispatchMu.Unlock()

	m.mu.Lock()
	if reg.removed || !st.hasLatest || reg.deliveredSeq >= st.seq {
		// A live update already reached this registration.
		m.mu.Unlock()
		return
	}
	reg.deliveredSeq = st.seq
	v := st.latest
	m.mu.Unlock()

	if m.passesFilter(reg, v) {
		m.invoke(st.key, reg, v)
	}
}

// handleUpdate is the single ingress for successful physical updates on key.
func (m *Multiplexer[V]) handleUpdate(key string, v *V) {
	m.mu.Lock()
	st, ok := m.keys[key]
	m.mu.Unlock()
	if !ok {
		return
	}

	st.dispatchMu.Lock()
	defer st.dispatchMu.Unlock()

	m.mu.Lock()
	if m.keys[key] != st {
		// Torn down while we waited for dispatch.
		m.mu.Unlock()
		return
	}
	st.seq++
	seq := st.seq
	st.latest = v
	st.hasLatest = true
	st.errCount = 0
	targets := make([]*registration[V], 0, len(st.regs))
	for _, reg := range st.regs {
		targets = append(targets, reg)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.updates.Inc()
	}

	for _, reg := range targets {
		// Filter before debounce: irrelevant updates never start or reset
		// a registration's timer.
		if !m.passesFilter(reg, v) {
			continue
		}

		if reg.opts.debounce > 0 {
			m.scheduleDebounced(st, reg, v, seq)
			continue
		}

		m.mu.Lock()
		if reg.removed || reg.deliveredSeq >= seq {
			m.mu.Unlock()
			continue
		}
		reg.deliveredSeq = seq
		m.mu.Unlock()

		m.invoke(key, reg, v)
	}
}

// handleError is the single ingress for physical channel errors on key.
// The channel is left open: the backing store is assumed to recover, and
// the consecutive error count is exposed for caller-side circuit breaking.
func (m *Multiplexer[V]) handleError(key string, err error) {
	m.mu.Lock()
	st, ok := m.keys[key]
	m.mu.Unlock()
	if !ok {
		return
	}

	st.dispatchMu.Lock()
	defer st.dispatchMu.Unlock()

	m.mu.Lock()
	if m.keys[key] != st {
		m.mu.Unlock()
		return
	}
	st.errCount++
	consecutive := st.errCount
	targets := make([]*registration[V], 0, len(st.regs))
	for _, reg := range st.regs {
		targets = append(targets, reg)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.channelErrors.Inc()
	}
	m.logger.Warn("physical channel error", "key", key, "consecutive", consecutive, "error", err)

	wrapped := errors.WrapTransient(err, "Multiplexer", "handleError", "channel update")
	for _, reg := range targets {
		m.mu.Lock()
		removed := reg.removed
		m.mu.Unlock()
		if removed {
			continue
		}

		if reg.opts.errorRecovery {
			m.invoke(key, reg, nil)
		} else if reg.opts.onError != nil {
			reg.opts.onError(wrapped)
		}
	}
}

// scheduleDebounced records v as the registration's pending delivery and
// restarts its quiet-period timer. Only the newest timer generation may
// deliver, so a burst yields exactly one callback with the last payload.
func (m *Multiplexer[V]) scheduleDebounced(st *keyState[V], reg *registration[V], v *V, seq uint64) {
	m.mu.Lock()
	if reg.removed {
		m.mu.Unlock()
		return
	}
	if reg.pendingSet && m.metrics != nil {
		m.metrics.coalesced.Inc()
	}
	reg.pending = v
	reg.pendingSet = true
	reg.deliveredSeq = seq
	reg.timerGen++
	gen := reg.timerGen
	if reg.timer != nil {
		reg.timer.Stop()
	}
	reg.timer = time.AfterFunc(reg.opts.debounce, func() {
		m.fireDebounce(st, reg, gen)
	})
	m.mu.Unlock()
}

func (m *Multiplexer[V]) fireDebounce(st *keyState[V], reg *registration[V], gen uint64) {
	m.mu.Lock()
	if reg.removed || reg.timerGen != gen || !reg.pendingSet {
		m.mu.Unlock()
		return
	}
	v := reg.pending
	reg.pending = nil
	reg.pendingSet = false
	reg.timer = nil
	m.mu.Unlock()

	m.invoke(st.key, reg, v)
}

func (m *Multiplexer[V]) passesFilter(reg *registration[V], v *V) bool {
	if v == nil {
		// Not-found and recovery deliveries bypass payload predicates.
		return true
	}
	if m.filters == nil {
		return true
	}
	f, ok := m.filters[reg.opts.callbackType]
	if !ok || f == nil {
		return true
	}
	return f(v)
}

// invoke calls the registration's callback, containing panics so one bad
// subscriber cannot break dispatch for other registrations or keys.
func (m *Multiplexer[V]) invoke(key string, reg *registration[V], v *V) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscriber callback panicked",
				"key", key, "registration", reg.id, "panic", r)
		}
	}()

	if reg.opts.logging {
		m.logger.Debug("delivering snapshot",
			"key", key, "registration", reg.id,
			"type", reg.opts.callbackType.String(), "notFound", v == nil)
	}
	if m.metrics != nil {
		m.metrics.callbacks.WithLabelValues(reg.opts.callbackType.String()).Inc()
	}
	reg.cb(v)
}

// unsubscribe removes reg; when the last registration for a key leaves,
// physical teardown is deferred by the grace period.
func (m *Multiplexer[V]) unsubscribe(key string, st *keyState[V], reg *registration[V]) {
	m.mu.Lock()
	if reg.removed {
		m.mu.Unlock()
		return
	}
	reg.removed = true
	if reg.timer != nil {
		reg.timer.Stop()
		reg.timer = nil
	}
	reg.pending = nil
	reg.pendingSet = false
	delete(st.regs, reg.id)

	if len(st.regs) == 0 && m.keys[key] == st && !m.closed {
		st.teardownGen++
		gen := st.teardownGen
		st.teardown = time.AfterFunc(m.grace, func() {
			m.teardownKey(key, st, gen)
		})
		m.logger.Debug("key draining", "key", key, "grace", m.grace)
	}
	m.mu.Unlock()
}

func (m *Multiplexer[V]) teardownKey(key string, st *keyState[V], gen uint64) {
	m.mu.Lock()
	if m.keys[key] != st || st.teardownGen != gen || len(st.regs) != 0 {
		m.mu.Unlock()
		return
	}
	delete(m.keys, key)
	ch := st.channel
	m.mu.Unlock()

	if err := ch.Close(); err != nil {
		m.logger.Warn("channel close failed", "key", key, "error", err)
	}
	if m.metrics != nil {
		m.metrics.channelsOpen.Dec()
		m.metrics.channelsClosed.Inc()
	}
	m.logger.Debug("closed physical channel", "key", key)
}

// HasActiveSubscribers reports whether key has at least one registration.
// A key draining inside its grace window reports false even though its
// physical channel is still open.
func (m *Multiplexer[V]) HasActiveSubscribers(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.keys[key]
	return ok && len(st.regs) > 0
}

// KeyErrorCount returns the consecutive physical error count for key,
// reset to zero by any successful update. Unknown keys report zero.
func (m *Multiplexer[V]) KeyErrorCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.keys[key]; ok {
		return st.errCount
	}
	return 0
}

// Stats is a point-in-time summary of multiplexer state.
type Stats struct {
	ActiveKeys    int // keys with at least one registration
	DrainingKeys  int // keys inside their teardown grace window
	Registrations int // total registrations across all keys
}

// Stats returns a snapshot of logical subscription state.
func (m *Multiplexer[V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Stats
	for _, st := range m.keys {
		if len(st.regs) > 0 {
			s.ActiveKeys++
		} else {
			s.DrainingKeys++
		}
		s.Registrations += len(st.regs)
	}
	return s
}

// Close tears down every physical channel and cancels all pending timers.
// Subsequent Subscribe calls fail; Close is idempotent.
func (m *Multiplexer[V]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	channels := make([]Channel, 0, len(m.keys))
	for key, st := range m.keys {
		if st.teardown != nil {
			st.teardown.Stop()
			st.teardown = nil
		}
		st.teardownGen++
		for _, reg := range st.regs {
			reg.removed = true
			if reg.timer != nil {
				reg.timer.Stop()
				reg.timer = nil
			}
		}
		channels = append(channels, st.channel)
		delete(m.keys, key)
	}
	m.mu.Unlock()

	m.cancel()

	for _, ch := range channels {
		if err := ch.Close(); err != nil {
			m.logger.Warn("channel close failed during shutdown", "error", err)
		}
	}
	if m.metrics != nil {
		m.metrics.channelsOpen.Set(0)
		m.metrics.channelsClosed.Add(float64(len(channels)))
	}
	return nil
}
