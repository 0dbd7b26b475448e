package raft

import (
	"sync"
	"time"
)

// Node is a single member of a fixed-size Raft cluster. All mutation of a
// Node's state happens under mu; outbound RPC I/O is always performed
// outside the lock so a slow peer can never block a heartbeat or a handler.
type Node struct {
	mu sync.Mutex

	// Persistent state. Kept in memory only; there is no on-disk log or
	// term/vote record, so a process restart loses it.
	currentTerm uint64
	votedFor    string
	logEntries  []LogEntry

	// Volatile state, all nodes.
	role        Role
	commitIndex int64 // -1 means nothing committed yet
	lastApplied int64 // -1 means nothing applied yet

	// Volatile state, leaders only. A matchIndex value of -1 means unknown.
	matchIndex map[string]int64

	// Election bookkeeping.
	lastHeartbeat   time.Time
	electionTimeout time.Duration

	id        string
	peers     []PeerConfig
	transport Transport
	sm        StateMachine
	log       Logger
	cfg       Config

	applyCh    chan ApplyMsg
	shutdownCh chan struct{}
	doneCh     chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
}

// New constructs a Node in the Follower role, term 0, empty log, and
// commitIndex/lastApplied at -1.
func New(cfg Config) *Node {
	cfg.setDefaults()

	n := &Node{
		currentTerm: 0,
		votedFor:    "",
		logEntries:  nil,
		role:        Follower,
		commitIndex: -1,
		lastApplied: -1,
		matchIndex:  make(map[string]int64, len(cfg.Peers)),
		id:          cfg.ID,
		peers:       cfg.Peers,
		transport:   cfg.Transport,
		sm:          cfg.StateMachine,
		cfg:         cfg,
		applyCh:     make(chan ApplyMsg, 256),
		shutdownCh:  make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	if cfg.Logger != nil {
		n.log = cfg.Logger
	} else {
		n.log = NewLogrusLogger(cfg.ID)
	}
	n.electionTimeout = n.randomElectionTimeout()
	n.lastHeartbeat = time.Now()
	return n
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// Start launches the timer/scheduler driver and the apply-delivery worker.
// Safe to call once; subsequent calls are no-ops.
func (n *Node) Start() {
	n.startOnce.Do(func() {
		go n.applyLoop()
		go n.run()
	})
}

// Shutdown stops the driver loop and the apply worker. Safe to call more
// than once and safe to call without a prior Start.
func (n *Node) Shutdown() {
	n.stopOnce.Do(func() {
		close(n.shutdownCh)
	})
}

// run is the node's single long-lived driver: while Follower or Candidate it
// polls at PollInterval granularity for election timeout; while Leader it
// broadcasts a heartbeat/replication round and re-evaluates the commit index
// on every HeartbeatInterval tick. Polling rather than a reset-on-every-event
// timer keeps the role check and the sleep in the same loop body, so a role
// change always takes effect on the very next iteration.
func (n *Node) run() {
	defer close(n.doneCh)
	for {
		if n.getRole() == Leader {
			n.broadcastAppendEntries()
			n.commitAdvance()
			if !n.sleepOrShutdown(n.cfg.HeartbeatInterval) {
				return
			}
			continue
		}

		if n.electionTimedOut() {
			n.startElection()
		}
		if !n.sleepOrShutdown(n.cfg.PollInterval) {
			return
		}
	}
}

// sleepOrShutdown waits for d or for Shutdown, whichever comes first. It
// reports whether the sleep completed normally (false means shut down).
func (n *Node) sleepOrShutdown(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-n.shutdownCh:
		return false
	}
}

func (n *Node) electionTimedOut() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return time.Since(n.lastHeartbeat) > n.electionTimeout
}

func (n *Node) getRole() Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

// GetState reports the current term and whether this node believes itself
// to be Leader.
func (n *Node) GetState() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTerm, n.role == Leader
}

// GetStatus returns a diagnostic snapshot of the node. The returned log is a
// defensive copy.
func (n *Node) GetStatus() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	logCopy := make([]LogEntry, len(n.logEntries))
	for i, e := range n.logEntries {
		cmd := make([]byte, len(e.Command))
		copy(cmd, e.Command)
		logCopy[i] = LogEntry{Term: e.Term, Command: cmd}
	}
	return Status{
		ID:          n.id,
		Role:        n.role,
		Term:        n.currentTerm,
		Log:         logCopy,
		CommitIndex: n.commitIndex,
		LastApplied: n.lastApplied,
	}
}

func (n *Node) randomElectionTimeout() time.Duration {
	lo, hi := n.cfg.ElectionTimeoutMin, n.cfg.ElectionTimeoutMax
	if hi <= lo {
		return lo
	}
	span := hi - lo
	return lo + time.Duration(randInt63n(int64(span)))
}
