// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/meshsub/meshsub/aggregate"
	"github.com/meshsub/meshsub/chain"
	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/emitter"
	"github.com/meshsub/meshsub/epoch"
	"github.com/meshsub/meshsub/logger"
	"github.com/meshsub/meshsub/store"
)

// Liveness answers which peers are participating. Satisfied by
// heartbeat.Tracker.
type Liveness interface {
	LivePeers(ctx context.Context, at time.Time) ([]*core.Heartbeat, error)
	IsEligible(ctx context.Context, peer core.PeerID, at time.Time) bool
}

// Archiver persists settled results. Satisfied by archive.Archive.
type Archiver interface {
	Put(res *core.EpochResult) error
}

type Resources struct {
	Signer   *core.PrivateKey
	Store    store.Store
	Clock    *epoch.Clock
	Ticker   *epoch.Ticker
	Liveness Liveness
	Archive  Archiver
	Chain    chain.Client
	Scorer   Scorer
}

type Config struct {
	Agg aggregate.Config

	// RetryBase is the initial backoff between publication retries.
	RetryBase time.Duration

	// SettlePolls and PollInterval control how many times the settle
	// handler re-reads the store before aggregating, to absorb
	// replication lag.
	SettlePolls  int
	PollInterval time.Duration
}

var DefaultConfig = Config{
	Agg:          aggregate.DefaultConfig,
	RetryBase:    500 * time.Millisecond,
	SettlePolls:  3,
	PollInterval: 2 * time.Second,
}

// Status is a snapshot of engine progress for the node API.
type Status struct {
	PeerID      core.PeerID `json:"peer_id"`
	Epoch       uint64      `json:"epoch"`
	Phase       string      `json:"phase"`
	Committed   bool        `json:"committed"`
	Revealed    bool        `json:"revealed"`
	LastSettled uint64      `json:"last_settled"`
}

// epochState is the node's own progress through one epoch. The salt
// and scores are held back until the reveal phase; they never leave
// the process before then.
type epochState struct {
	epoch     uint64
	committed bool
	revealed  bool
	salt      []byte
	scores    core.ScoreVector
}

// Engine drives the commit-reveal rounds. Each phase transition from
// the ticker advances the per-epoch state machine; a node that missed
// its commit stays silent for the rest of the epoch, and settlement
// runs from the shared store alone so every honest node converges on
// the same result.
type Engine struct {
	resources *Resources
	config    Config

	state       epochState
	phase       epoch.Phase
	lastSettled uint64
	mtx         sync.RWMutex

	now   func() time.Time
	sleep func(d time.Duration)

	stopCh chan struct{}
}

func New(resources *Resources, config Config) *Engine {
	if config.RetryBase <= 0 {
		config.RetryBase = DefaultConfig.RetryBase
	}
	if config.SettlePolls <= 0 {
		config.SettlePolls = DefaultConfig.SettlePolls
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig.PollInterval
	}
	if resources.Scorer == nil {
		resources.Scorer = StaticScorer{Value: 1}
	}
	return &Engine{
		resources: resources,
		config:    config,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

func (e *Engine) Start() {
	if e.stopCh != nil {
		return
	}
	e.stopCh = make(chan struct{})
	sub := e.resources.Ticker.Subscribe(10)
	go e.run(sub)
}

func (e *Engine) Stop() {
	if e.stopCh == nil {
		return
	}
	select {
	case <-e.stopCh:
		return
	default:
	}
	close(e.stopCh)
}

func (e *Engine) Status() Status {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return Status{
		PeerID:      e.resources.Signer.PeerID(),
		Epoch:       e.state.epoch,
		Phase:       e.phase.String(),
		Committed:   e.state.committed,
		Revealed:    e.state.revealed,
		LastSettled: e.lastSettled,
	}
}

func (e *Engine) run(sub *emitter.Subscription) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-e.stopCh:
			return
		case event := <-sub.Events():
			change, ok := event.(epoch.PhaseChange)
			if !ok {
				continue
			}
			e.onPhaseChange(change)
		}
	}
}

func (e *Engine) onPhaseChange(change epoch.PhaseChange) {
	e.mtx.Lock()
	e.phase = change.Phase
	e.mtx.Unlock()

	switch change.Phase {
	case epoch.Commit:
		e.onCommitPhase(change.Epoch)
	case epoch.Reveal:
		e.onRevealPhase(change.Epoch)
	case epoch.Settled:
		e.onSettlePhase(change.Epoch)
	}
}

// onCommitPhase scores the live peers, publishes the commitment, and
// arms the reveal only after the store confirmed the put. A node
// restarted mid-epoch lands here next epoch with fresh state; the old
// salt was never persisted, so there is nothing stale to reveal.
func (e *Engine) onCommitPhase(epochIdx uint64) {
	e.mtx.Lock()
	e.state = epochState{epoch: epochIdx}
	e.mtx.Unlock()

	ctx, cancel := e.windowCtx(epochIdx, epoch.Commit)
	defer cancel()

	targets := e.commitTargets(ctx)
	if len(targets) == 0 {
		logger.I().Warnw("no targets to score", "epoch", epochIdx)
		return
	}
	scores, err := e.resources.Scorer.Score(ctx, epochIdx, targets)
	if err != nil {
		logger.I().Errorw("scorer failed", "epoch", epochIdx, "error", err)
		return
	}
	if err := scores.Validate(); err != nil {
		logger.I().Errorw("scorer produced invalid scores", "epoch", epochIdx, "error", err)
		return
	}

	self := e.resources.Signer.PeerID()
	salt := core.NewSalt()
	commit := &core.Commit{
		Epoch:       epochIdx,
		Author:      self,
		Digest:      core.CommitDigest(epochIdx, self, salt, scores),
		SubmittedAt: e.now().UnixMilli(),
	}
	payload, err := commit.Marshal()
	if err != nil {
		logger.I().Errorw("marshal commit failed", "error", err)
		return
	}
	if err := e.publish(ctx, store.CommitKey(epochIdx), payload); err != nil {
		logger.I().Errorw("commit publication failed", "epoch", epochIdx, "error", err)
		return
	}

	e.mtx.Lock()
	e.state.committed = true
	e.state.salt = salt
	e.state.scores = scores
	e.mtx.Unlock()
	logger.I().Infow("committed scores", "epoch", epochIdx, "targets", len(targets))
}

// onRevealPhase discloses the salt and scores committed earlier this
// epoch. Without a confirmed commit the node stays silent; a reveal
// with no matching commitment would be dropped at settlement anyway.
func (e *Engine) onRevealPhase(epochIdx uint64) {
	e.mtx.RLock()
	armed := e.state.epoch == epochIdx && e.state.committed
	salt, scores := e.state.salt, e.state.scores
	e.mtx.RUnlock()
	if !armed {
		logger.I().Infow("skipping reveal, no commitment this epoch", "epoch", epochIdx)
		return
	}

	ctx, cancel := e.windowCtx(epochIdx, epoch.Reveal)
	defer cancel()

	reveal := &core.Reveal{
		Epoch:       epochIdx,
		Author:      e.resources.Signer.PeerID(),
		Salt:        salt,
		Scores:      scores,
		SubmittedAt: e.now().UnixMilli(),
	}
	payload, err := reveal.Marshal()
	if err != nil {
		logger.I().Errorw("marshal reveal failed", "error", err)
		return
	}
	if err := e.publish(ctx, store.RevealKey(epochIdx), payload); err != nil {
		logger.I().Errorw("reveal publication failed", "epoch", epochIdx, "error", err)
		return
	}

	e.mtx.Lock()
	e.state.revealed = true
	e.mtx.Unlock()
	logger.I().Infow("revealed scores", "epoch", epochIdx)
}

// onSettlePhase derives the epoch result from the shared store. Every
// input comes from the store, never from local state, so all nodes
// settle identically regardless of their own participation.
func (e *Engine) onSettlePhase(epochIdx uint64) {
	ctx, cancel := e.windowCtx(epochIdx, epoch.Settled)
	defer cancel()

	commits, reveals := e.collectRecords(ctx, epochIdx)
	valid := e.validReveals(ctx, epochIdx, commits, reveals)
	targets := e.eligibleTargets(ctx, epochIdx)

	res := aggregate.Aggregate(epochIdx, valid, targets, e.config.Agg, e.now())
	if err := e.resources.Archive.Put(res); err != nil {
		logger.I().Errorw("archive result failed", "epoch", epochIdx, "error", err)
	}
	if err := e.resources.Chain.SubmitScores(res.Epoch, res.Scores); err != nil {
		logger.I().Errorw("score submission failed", "epoch", epochIdx, "error", err)
	}

	e.mtx.Lock()
	e.lastSettled = epochIdx
	e.mtx.Unlock()
	logger.I().Infow("settled epoch", "epoch", epochIdx,
		"reveals", len(valid), "scored", len(res.Scores), "noConsensus", len(res.NoConsensus))
}

// commitTargets lists the peers this node will score: everyone with a
// live heartbeat, excluding itself.
func (e *Engine) commitTargets(ctx context.Context) []core.PeerID {
	hbs, err := e.resources.Liveness.LivePeers(ctx, e.now())
	if err != nil {
		logger.I().Errorw("live peer lookup failed", "error", err)
		return nil
	}
	self := e.resources.Signer.PeerID()
	targets := make([]core.PeerID, 0, len(hbs))
	for _, hb := range hbs {
		if hb.Peer != self {
			targets = append(targets, hb.Peer)
		}
	}
	return targets
}

// collectRecords reads the epoch's commit and reveal entries,
// re-polling to absorb replication lag. Entries are keyed by subkey;
// later polls only add, the store already resolves conflicts.
func (e *Engine) collectRecords(ctx context.Context, epochIdx uint64) (map[string]store.Entry, map[string]store.Entry) {
	commits := make(map[string]store.Entry)
	reveals := make(map[string]store.Entry)
	for i := 0; i < e.config.SettlePolls; i++ {
		if i > 0 {
			e.sleep(e.config.PollInterval)
		}
		if m, err := e.resources.Store.Get(ctx, store.CommitKey(epochIdx)); err == nil {
			for subkey, entry := range m {
				commits[subkey] = entry
			}
		}
		if m, err := e.resources.Store.Get(ctx, store.RevealKey(epochIdx)); err == nil {
			for subkey, entry := range m {
				reveals[subkey] = entry
			}
		}
	}
	return commits, reveals
}

// validReveals filters the collected records down to reveals that open
// a well-formed commitment from an eligible author. Invalid records
// are dropped without affecting other authors.
func (e *Engine) validReveals(
	ctx context.Context, epochIdx uint64,
	commitEntries, revealEntries map[string]store.Entry,
) []*core.Reveal {
	commitDeadline := e.resources.Clock.Deadline(epochIdx, epoch.Commit)

	commits := make(map[core.PeerID]*core.Commit)
	for subkey, entry := range commitEntries {
		commit, err := openCommit(subkey, entry.Value)
		if err != nil {
			logger.I().Warnw("dropping commit", "subkey", subkey, "error", err)
			continue
		}
		if commit.Epoch != epochIdx {
			continue
		}
		// late commits are void even if the store accepted them
		if !e.resources.Clock.InWindow(epochIdx, epoch.Commit, time.UnixMilli(commit.SubmittedAt)) {
			logger.I().Warnw("dropping late commit", "author", commit.Author)
			continue
		}
		if !e.resources.Liveness.IsEligible(ctx, commit.Author, commitDeadline) {
			logger.I().Warnw("dropping commit from ineligible author", "author", commit.Author)
			continue
		}
		commits[commit.Author] = commit
	}

	valid := make([]*core.Reveal, 0, len(revealEntries))
	for subkey, entry := range revealEntries {
		reveal, err := openReveal(subkey, entry.Value)
		if err != nil {
			logger.I().Warnw("dropping reveal", "subkey", subkey, "error", err)
			continue
		}
		commit, ok := commits[reveal.Author]
		if !ok {
			logger.I().Warnw("dropping reveal without commitment", "author", reveal.Author)
			continue
		}
		if err := reveal.Matches(commit); err != nil {
			logger.I().Warnw("dropping reveal", "author", reveal.Author, "error", err)
			continue
		}
		valid = append(valid, reveal)
	}
	return valid
}

// eligibleTargets lists the peers settlement may score: those still
// eligible at the commit deadline of the epoch.
func (e *Engine) eligibleTargets(ctx context.Context, epochIdx uint64) []core.PeerID {
	at := e.resources.Clock.Deadline(epochIdx, epoch.Commit)
	hbs, err := e.resources.Liveness.LivePeers(ctx, at)
	if err != nil {
		logger.I().Errorw("live peer lookup failed", "error", err)
		return nil
	}
	targets := make([]core.PeerID, 0, len(hbs))
	for _, hb := range hbs {
		targets = append(targets, hb.Peer)
	}
	return targets
}

// publish signs and stores a record under this node's own subkey,
// retrying with backoff until the phase window closes. Returning nil
// means the store confirmed the write.
func (e *Engine) publish(ctx context.Context, key string, payload []byte) error {
	value, err := core.SignRecord(e.resources.Signer, payload)
	if err != nil {
		return err
	}
	subkey := string(e.resources.Signer.PeerID())
	expiresAt := e.now().Add(4 * e.resources.Clock.Config().EpochLength())

	backoff, err := retry.NewExponential(e.config.RetryBase)
	if err != nil {
		return err
	}
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := e.resources.Store.Put(ctx, key, subkey, value, expiresAt)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// windowCtx bounds an operation by the phase deadline so retries and
// polls never spill into the next phase.
func (e *Engine) windowCtx(epochIdx uint64, phase epoch.Phase) (context.Context, context.CancelFunc) {
	remaining := e.resources.Clock.Deadline(epochIdx, phase).Sub(e.now())
	return context.WithTimeout(context.Background(), remaining)
}

func openCommit(subkey string, value []byte) (*core.Commit, error) {
	payload, owner, err := core.OpenRecord(value)
	if err != nil {
		return nil, err
	}
	commit, err := core.UnmarshalCommit(payload)
	if err != nil {
		return nil, err
	}
	if err := commit.Validate(); err != nil {
		return nil, err
	}
	if string(owner.PeerID()) != subkey || commit.Author != owner.PeerID() {
		return nil, core.ErrInvalidRecordSig
	}
	return commit, nil
}

func openReveal(subkey string, value []byte) (*core.Reveal, error) {
	payload, owner, err := core.OpenRecord(value)
	if err != nil {
		return nil, err
	}
	reveal, err := core.UnmarshalReveal(payload)
	if err != nil {
		return nil, err
	}
	if string(owner.PeerID()) != subkey || reveal.Author != owner.PeerID() {
		return nil, core.ErrInvalidRecordSig
	}
	return reveal, nil
}
