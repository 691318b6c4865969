package engagement

import "sync"

// RollbackToken identifies one optimistic change. Commit, Reconcile and
// Rollback only touch the display when the token is still the newest one for
// its target.
type RollbackToken struct {
	TargetID  string
	Predicted State

	seq         uint64
	snapshot    State
	vote        VoteType
	authVersion uint64
}

// Snapshot is the displayed state captured when the token began
func (t RollbackToken) Snapshot() State {
	return t.snapshot
}

// Reconciler is the OptimisticReconciler: a local cache of displayed states
// plus the bookkeeping needed to undo a guess.
type Reconciler struct {
	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
}

type entry struct {
	display State

	current uint64 // seq of the newest token
	pending int    // tokens begun but not yet resolved

	// root is the display before the first token of an overlapping chain
	root            State
	rootAuthVersion uint64

	auth        *State
	authVersion uint64 // bumped on every accepted authoritative state
	authSeq     uint64 // token seq the authoritative state belongs to

	// tainted is set when an older token of the chain was rolled back after a
	// newer one began, so the newer token's snapshot contains a failed guess
	tainted bool
}

// NewReconciler creates an empty reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{entries: make(map[string]*entry)}
}

func (r *Reconciler) entry(targetID string) *entry {
	e, ok := r.entries[targetID]
	if !ok {
		e = &entry{}
		r.entries[targetID] = e
	}
	return e
}

// Seed records an authoritative state, e.g. the counters delivered with a
// feed page. The display follows only when nothing is in flight.
func (r *Reconciler) Seed(targetID string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(targetID)
	e.setAuth(e.current, s)
	if e.pending == 0 {
		e.display = s
	}
}

// State returns the displayed state for targetID
func (r *Reconciler) State(targetID string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[targetID]
	if !ok {
		return State{}, false
	}
	return e.display, true
}

// Pending reports how many optimistic changes are unresolved for targetID
func (r *Reconciler) Pending(targetID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[targetID]; ok {
		return e.pending
	}
	return 0
}

// Begin displays predicted immediately and returns the token that resolves it.
// The requested vote is recovered from the move between the current display
// and predicted, so a guess stacked on a failed one can be replayed.
func (r *Reconciler) Begin(targetID string, predicted State) RollbackToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(targetID)
	return r.begin(targetID, predicted, impliedVote(e.display, predicted))
}

// impliedVote inverts Predict: a vote either lands on its own direction or
// toggles the previous one off.
func impliedVote(from, to State) VoteType {
	if to.UserVote != VoteNone {
		return to.UserVote
	}
	return from.UserVote
}

// BeginVote predicts the outcome of vt from the current display and begins it
// in one step, so the prediction cannot be based on a stale read.
func (r *Reconciler) BeginVote(targetID string, vt VoteType) RollbackToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(targetID)
	return r.begin(targetID, Predict(e.display, vt), vt)
}

func (r *Reconciler) begin(targetID string, predicted State, vt VoteType) RollbackToken {
	e := r.entry(targetID)
	if e.pending == 0 {
		e.root = e.display
		e.rootAuthVersion = e.authVersion
		e.tainted = false
	}

	r.seq++
	tok := RollbackToken{
		TargetID:    targetID,
		Predicted:   predicted,
		seq:         r.seq,
		snapshot:    e.display,
		vote:        vt,
		authVersion: e.authVersion,
	}
	e.current = tok.seq
	e.pending++
	e.display = predicted
	return tok
}

// Commit accepts the guess without an authoritative recount. It returns false
// for a stale token, which changes nothing.
func (r *Reconciler) Commit(tok RollbackToken) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.resolve(tok)
	if !ok {
		return false
	}
	if e.tainted && tok.vote != VoteNone {
		// the guess was stacked on a failed one; replay it on the last good base
		e.display = Predict(e.base(), tok.vote)
	}
	return true
}

// Reconcile replaces the guess with the authoritative state. Authoritative
// data is always remembered; the display only changes for the newest token.
func (r *Reconciler) Reconcile(tok RollbackToken, auth State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entry(tok.TargetID).setAuth(tok.seq, auth)
	e, ok := r.resolve(tok)
	if !ok {
		return false
	}
	e.display = auth
	return true
}

// Rollback undoes a failed guess. The display goes back to the newest
// authoritative state seen since the token began, else to the chain root if an
// older overlapping change failed, else to the token's own snapshot. A stale
// token is discarded and returns false.
func (r *Reconciler) Rollback(tok RollbackToken) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.resolve(tok)
	if !ok {
		if e != nil {
			e.tainted = true
		}
		return false
	}

	switch {
	case e.auth != nil && e.authVersion > tok.authVersion:
		e.display = *e.auth
	case e.tainted:
		e.display = e.base()
	default:
		e.display = tok.snapshot
	}
	return true
}

// resolve marks tok finished and reports whether it is the current token
func (r *Reconciler) resolve(tok RollbackToken) (*entry, bool) {
	e, ok := r.entries[tok.TargetID]
	if !ok {
		return nil, false
	}
	if e.pending > 0 {
		e.pending--
	}
	return e, tok.seq == e.current
}

// setAuth ignores answers older than the one already held
func (e *entry) setAuth(seq uint64, s State) {
	if e.auth != nil && seq < e.authSeq {
		return
	}
	e.auth = &s
	e.authSeq = seq
	e.authVersion++
}

// base is the last state known to be good for the current chain
func (e *entry) base() State {
	if e.auth != nil && e.authVersion > e.rootAuthVersion {
		return *e.auth
	}
	return e.root
}
