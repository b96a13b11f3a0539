// Package engine owns the authoritative campaign set and enforces the
// lifecycle state machine. Mutations to a single campaign are serialized by a
// per-campaign lock; cross-campaign reads (risk aggregation, queries) run
// against a copy-on-write snapshot so no global lock is held for the duration
// of a risk computation.
package engine

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"wyckoff/internal/campaign"
	"wyckoff/internal/config"
	"wyckoff/internal/eventbus"
	"wyckoff/internal/logger"
	"wyckoff/internal/risk"
	"wyckoff/internal/validation"
)

// Manager is the campaign state manager. Construct with NewManager and pass
// the instance to callers explicitly; there is no process-wide registry.
type Manager struct {
	cfg       config.EngineConfig
	validator *validation.SequenceValidator
	gate      *risk.Gate
	bus       *eventbus.Bus

	mu        sync.RWMutex
	campaigns map[string]*campaign.Campaign          // by id
	byKey     map[string]string                      // (symbol|range) -> non-terminal campaign id
	bySymbol  map[string]map[string]struct{}         // symbol -> campaign ids
	byState   map[campaign.CampaignState]map[string]struct{}

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex // per (symbol|range) write serialization

	snapshot atomic.Value // []*campaign.Campaign, clones of non-terminal campaigns

	cascadeMu     sync.Mutex
	cascadeActive map[string]bool // correlation group -> currently signalled

	nowFn func() time.Time
}

func NewManager(cfg config.EngineConfig, v *validation.SequenceValidator, g *risk.Gate, bus *eventbus.Bus) *Manager {
	m := &Manager{
		cfg:           cfg,
		validator:     v,
		gate:          g,
		bus:           bus,
		campaigns:     make(map[string]*campaign.Campaign),
		byKey:         make(map[string]string),
		bySymbol:      make(map[string]map[string]struct{}),
		byState:       make(map[campaign.CampaignState]map[string]struct{}),
		locks:         make(map[string]*sync.Mutex),
		cascadeActive: make(map[string]bool),
		nowFn:         time.Now,
	}
	m.snapshot.Store([]*campaign.Campaign{})
	return m
}

// AddPattern runs the full admission path for one detection: lookup or open a
// FORMING campaign, sequence validation, risk admission, then an atomic
// commit of event, phase, state and indexes, followed by notifications.
// Rejections come back as a Result, never as an error; the error return is
// reserved for malformed events.
func (m *Manager) AddPattern(e campaign.PatternEvent) (Result, error) {
	if err := e.Validate(); err != nil {
		return Result{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Symbol = strings.ToUpper(strings.TrimSpace(e.Symbol))

	key := e.CampaignKey()
	kl := m.keyLock(key)
	kl.Lock()
	defer kl.Unlock()

	now := m.nowFn()
	c, exists := m.lookupByKey(key)

	// A stale FORMING campaign is expired on contact, before the sweep gets
	// to it, and the incoming event is rejected on that ground.
	if exists && c.State == campaign.StateForming && now.Sub(c.CreatedAt) > m.cfg.ExpiryWindow {
		m.expireLocked(c, e.ID)
		return Result{Code: ReasonExpired, Reason: "campaign confirmation window lapsed"}, nil
	}

	// Idempotence check on event content alone, before validation: once the
	// campaign phase has advanced a retransmit would re-validate differently,
	// but it still must not double-count risk.
	fp := validation.EventFingerprint(e)
	if exists && c.HasFingerprint(fp) {
		return Result{Code: ReasonDuplicate, Reason: "identical pattern already accepted", Campaign: c.Clone()}, nil
	}

	isNew := !exists
	if isNew {
		meta := m.symbolMeta(e.Symbol)
		c = campaign.New(uuid.NewString(), e, meta.CorrelationGroup, meta.Currency, meta.Category, now)
	}

	d := m.validator.Validate(c, e)
	if !d.OK {
		m.publishRejection(c, e, isNew, ReasonSequenceInvalid, d.Reason)
		return Result{Code: ReasonSequenceInvalid, Reason: d.Reason}, nil
	}

	cand := risk.Candidate{
		Symbol:    e.Symbol,
		Currency:  c.Currency,
		Category:  c.Category,
		Group:     c.CorrelationGroup,
		AddedHeat: e.RiskPct,
		Phase:     d.Phase,
		New:       isNew,
	}
	if !isNew {
		cand.Campaign = c
	}
	adm := m.gate.CheckAdmission(cand, m.ActiveSnapshot())
	if !adm.Allowed {
		m.publishRejection(c, e, isNew, ReasonRiskRejected, adm.Reason)
		return Result{Code: ReasonRiskRejected, Reason: adm.Reason, Warnings: adm.Warnings}, nil
	}

	// Commit: event append, phase, state advance and all indexes move in one
	// step under the write lock so readers never see a partial update.
	prevPhase := c.Phase
	activated := false
	m.mu.Lock()
	if isNew {
		m.registerLocked(c)
	}
	c.Apply(e, fp, d.Phase, now)
	if c.State == campaign.StateForming && len(c.Events) >= 2 && c.Phase.Rank() > prevPhase.Rank() {
		m.setStateLocked(c, campaign.StateActive)
		activated = true
	}
	m.refreshSnapshotLocked()
	m.mu.Unlock()

	clone := c.Clone()
	corr := e.ID
	if isNew {
		m.publish(eventbus.EventCampaignFormed, clone, &e, corr, "", nil)
	}
	m.publish(eventbus.EventPatternAdded, clone, &e, corr, "", adm.Warnings)
	if activated {
		m.publish(eventbus.EventCampaignActivated, clone, &e, corr, "", nil)
	}
	if len(adm.Warnings) > 0 {
		m.publish(eventbus.EventHeatAlert, clone, &e, corr, strings.Join(adm.Warnings, "; "), adm.Warnings)
	}

	return Result{Accepted: true, Campaign: clone, Warnings: adm.Warnings}, nil
}

// AddPatternsBatch applies the events strictly in the given order. It is
// observably equivalent to calling AddPattern sequentially.
func (m *Manager) AddPatternsBatch(events []campaign.PatternEvent) ([]Result, error) {
	results := make([]Result, 0, len(events))
	for _, e := range events {
		res, err := m.AddPattern(e)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Transition moves a campaign to the target lifecycle state. Illegal
// transitions return a *StateTransitionError; addressing an unknown campaign
// returns ErrCampaignNotFound.
func (m *Manager) Transition(campaignID string, target campaign.CampaignState) (*campaign.Campaign, error) {
	m.mu.RLock()
	c, ok := m.campaigns[campaignID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCampaignNotFound
	}

	kl := m.keyLock(c.Key())
	kl.Lock()
	defer kl.Unlock()

	if !campaign.CanTransition(c.State, target) {
		return nil, &StateTransitionError{CampaignID: campaignID, From: c.State, To: target}
	}

	m.mu.Lock()
	m.setStateLocked(c, target)
	c.UpdatedAt = m.nowFn()
	m.refreshSnapshotLocked()
	m.mu.Unlock()

	clone := c.Clone()
	switch target {
	case campaign.StateActive:
		m.publish(eventbus.EventCampaignActivated, clone, nil, "", "", nil)
	case campaign.StateCompleted:
		m.publish(eventbus.EventCampaignCompleted, clone, nil, "", "", nil)
	case campaign.StateFailed:
		m.publish(eventbus.EventCampaignFailed, clone, nil, "", "", nil)
		m.signalCascades()
	case campaign.StateExpired:
		m.publish(eventbus.EventCampaignExpired, clone, nil, "", "", nil)
	}
	return clone, nil
}

// SetFailing flags an active campaign as being on a failing trajectory (set
// by an external monitor watching price against the structure). Turning a
// correlated group sufficiently red fires the portfolio cascade signal.
func (m *Manager) SetFailing(campaignID string, failing bool) error {
	m.mu.RLock()
	c, ok := m.campaigns[campaignID]
	m.mu.RUnlock()
	if !ok {
		return ErrCampaignNotFound
	}

	kl := m.keyLock(c.Key())
	kl.Lock()
	defer kl.Unlock()

	m.mu.Lock()
	c.Failing = failing
	c.UpdatedAt = m.nowFn()
	m.refreshSnapshotLocked()
	m.mu.Unlock()

	m.signalCascades()
	return nil
}

// GetCampaign returns a clone of the campaign by id.
func (m *Manager) GetCampaign(id string) (*campaign.Campaign, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// GetActiveCampaigns returns clones of all non-terminal campaigns, optionally
// filtered by symbol. Served from the indexes, never a full scan.
func (m *Manager) GetActiveCampaigns(symbol string) []*campaign.Campaign {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[string]struct{}
	if symbol != "" {
		ids = m.bySymbol[symbol]
	}

	out := make([]*campaign.Campaign, 0)
	for _, state := range []campaign.CampaignState{campaign.StateForming, campaign.StateActive} {
		for id := range m.byState[state] {
			if ids != nil {
				if _, ok := ids[id]; !ok {
					continue
				}
			}
			out = append(out, m.campaigns[id].Clone())
		}
	}
	return out
}

// ListCampaigns returns clones of every tracked campaign, optionally filtered
// by state. Terminal campaigns stay queryable until the process restarts;
// durable history lives in the snapshot store.
func (m *Manager) ListCampaigns(state campaign.CampaignState) []*campaign.Campaign {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*campaign.Campaign, 0)
	if state != "" {
		for id := range m.byState[state] {
			out = append(out, m.campaigns[id].Clone())
		}
		return out
	}
	for _, c := range m.campaigns {
		out = append(out, c.Clone())
	}
	return out
}

// ActiveSnapshot returns the current copy-on-write view of non-terminal
// campaigns. The slice and its campaigns are clones frozen at the last
// mutation; callers may read them without any locking.
func (m *Manager) ActiveSnapshot() []*campaign.Campaign {
	return m.snapshot.Load().([]*campaign.Campaign)
}

// ExitPriority orders the active set for forced contraction.
func (m *Manager) ExitPriority() []*campaign.Campaign {
	return risk.ExitPriority(m.ActiveSnapshot())
}

// ExpireStale moves FORMING campaigns older than the confirmation window to
// EXPIRED. Runs through the same per-campaign locks as AddPattern, so the
// sweep never races a concurrent mutation on the same campaign.
func (m *Manager) ExpireStale() int {
	now := m.nowFn()

	m.mu.RLock()
	var stale []*campaign.Campaign
	for id := range m.byState[campaign.StateForming] {
		c := m.campaigns[id]
		if now.Sub(c.CreatedAt) > m.cfg.ExpiryWindow {
			stale = append(stale, c)
		}
	}
	m.mu.RUnlock()

	expired := 0
	for _, c := range stale {
		kl := m.keyLock(c.Key())
		kl.Lock()
		// Re-check under the lock: a concurrent AddPattern may have advanced it.
		if c.State == campaign.StateForming && now.Sub(c.CreatedAt) > m.cfg.ExpiryWindow {
			m.expireLocked(c, "")
			expired++
		}
		kl.Unlock()
	}
	if expired > 0 {
		logger.Infof("engine: expired %d unconfirmed campaigns", expired)
	}
	return expired
}

// expireLocked transitions a FORMING campaign to EXPIRED. Caller holds the
// campaign's key lock.
func (m *Manager) expireLocked(c *campaign.Campaign, correlationID string) {
	m.mu.Lock()
	m.setStateLocked(c, campaign.StateExpired)
	c.UpdatedAt = m.nowFn()
	m.refreshSnapshotLocked()
	m.mu.Unlock()
	m.publish(eventbus.EventCampaignExpired, c.Clone(), nil, correlationID, "confirmation window lapsed", nil)
}

func (m *Manager) lookupByKey(key string) (*campaign.Campaign, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, false
	}
	return m.campaigns[id], true
}

// registerLocked adds a new campaign to the primary set and every index.
// Caller holds m.mu.
func (m *Manager) registerLocked(c *campaign.Campaign) {
	m.campaigns[c.ID] = c
	m.byKey[c.Key()] = c.ID
	if m.bySymbol[c.Symbol] == nil {
		m.bySymbol[c.Symbol] = make(map[string]struct{})
	}
	m.bySymbol[c.Symbol][c.ID] = struct{}{}
	if m.byState[c.State] == nil {
		m.byState[c.State] = make(map[string]struct{})
	}
	m.byState[c.State][c.ID] = struct{}{}
}

// setStateLocked moves the campaign between state buckets and releases the
// (symbol, range) slot when the state is terminal. Caller holds m.mu.
func (m *Manager) setStateLocked(c *campaign.Campaign, target campaign.CampaignState) {
	delete(m.byState[c.State], c.ID)
	c.State = target
	if m.byState[target] == nil {
		m.byState[target] = make(map[string]struct{})
	}
	m.byState[target][c.ID] = struct{}{}
	if target.IsTerminal() {
		delete(m.byKey, c.Key())
	}
}

// refreshSnapshotLocked rebuilds the copy-on-write active view. Caller holds m.mu.
func (m *Manager) refreshSnapshotLocked() {
	active := make([]*campaign.Campaign, 0, len(m.byState[campaign.StateForming])+len(m.byState[campaign.StateActive]))
	for _, state := range []campaign.CampaignState{campaign.StateForming, campaign.StateActive} {
		for id := range m.byState[state] {
			active = append(active, m.campaigns[id].Clone())
		}
	}
	m.snapshot.Store(active)
}

func (m *Manager) keyLock(key string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Manager) symbolMeta(symbol string) config.SymbolMeta {
	if meta, ok := m.cfg.Symbols[symbol]; ok {
		if meta.CorrelationGroup == "" {
			meta.CorrelationGroup = symbol
		}
		return meta
	}
	return config.SymbolMeta{CorrelationGroup: symbol}
}

// signalCascades publishes a CascadeAlert for every correlation group that
// newly crosses the cascade threshold, and clears the latch when it recovers.
func (m *Manager) signalCascades() {
	signals := m.gate.Cascades(m.ActiveSnapshot())
	current := make(map[string]bool, len(signals))
	for _, s := range signals {
		current[s.Group] = true
	}

	m.cascadeMu.Lock()
	var fire []risk.CascadeSignal
	for _, s := range signals {
		if !m.cascadeActive[s.Group] {
			m.cascadeActive[s.Group] = true
			fire = append(fire, s)
		}
	}
	for group := range m.cascadeActive {
		if !current[group] {
			delete(m.cascadeActive, group)
		}
	}
	m.cascadeMu.Unlock()

	for i := range fire {
		s := fire[i]
		logger.Warnf("engine: correlation cascade in group %s (%d failing)", s.Group, s.Failing)
		if m.bus != nil {
			m.bus.Publish(eventbus.Event{
				Type:    eventbus.EventCascadeAlert,
				Reason:  "correlated campaigns failing concurrently",
				Cascade: &s,
				At:      m.nowFn(),
			})
		}
	}
}

func (m *Manager) publishRejection(c *campaign.Campaign, e campaign.PatternEvent, isNew bool, code ReasonCode, reason string) {
	if m.bus == nil {
		return
	}
	evt := eventbus.Event{
		Type:          eventbus.EventPatternRejected,
		Symbol:        e.Symbol,
		CorrelationID: e.ID,
		Pattern:       &e,
		Reason:        string(code) + ": " + reason,
		At:            m.nowFn(),
	}
	if !isNew {
		evt.CampaignID = c.ID
		evt.Campaign = c.Clone()
	}
	m.bus.Publish(evt)
}

func (m *Manager) publish(t eventbus.EventType, c *campaign.Campaign, e *campaign.PatternEvent, correlationID, reason string, warnings []string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{
		Type:          t,
		CampaignID:    c.ID,
		Symbol:        c.Symbol,
		CorrelationID: correlationID,
		Campaign:      c,
		Pattern:       e,
		Reason:        reason,
		Warnings:      warnings,
		At:            m.nowFn(),
	})
}
