package raft

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStateMachine captures every applied command in order, guarded by
// its own mutex since Apply is invoked from the node's apply goroutine.
type recordingStateMachine struct {
	mu      sync.Mutex
	applied [][]byte
}

func (r *recordingStateMachine) Apply(command []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, command)
	return nil
}

func (r *recordingStateMachine) snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.applied...)
}

func TestCommitAdvanceRequiresMajority(t *testing.T) {
	nodes, _ := newTestCluster(3)
	n := nodes[0]
	defer n.Shutdown()

	n.mu.Lock()
	n.role = Leader
	n.currentTerm = 1
	n.logEntries = []LogEntry{{Term: 1, Command: []byte("a")}}
	n.mu.Unlock()

	// No peer has acknowledged yet: only the leader itself counts.
	n.commitAdvance()
	st := n.GetStatus()
	assert.Equal(t, int64(-1), st.CommitIndex, "one of three acks is not a majority")

	n.mu.Lock()
	n.matchIndex[nodes[1].ID()] = 0
	n.mu.Unlock()

	n.commitAdvance()
	st = n.GetStatus()
	assert.Equal(t, int64(0), st.CommitIndex, "leader plus one follower is a majority of three")
}

func TestCommitAdvanceIsTermGated(t *testing.T) {
	nodes, _ := newTestCluster(3)
	n := nodes[0]
	defer n.Shutdown()

	n.mu.Lock()
	n.role = Leader
	n.currentTerm = 2
	n.logEntries = []LogEntry{{Term: 1, Command: []byte("stale")}}
	n.matchIndex[nodes[1].ID()] = 0
	n.matchIndex[nodes[2].ID()] = 0
	n.mu.Unlock()

	n.commitAdvance()
	st := n.GetStatus()
	assert.Equal(t, int64(-1), st.CommitIndex, "an entry from a prior term must not commit on replication count alone")
}

func TestApplyLoopDeliversInOrder(t *testing.T) {
	sm := &recordingStateMachine{}
	nodes, _ := newTestCluster(1)
	n := nodes[0]
	n.sm = sm
	n.Start()
	defer n.Shutdown()

	n.mu.Lock()
	n.role = Leader
	n.logEntries = []LogEntry{
		{Term: 1, Command: []byte("PUT x 1")},
		{Term: 1, Command: []byte("PUT y 2")},
	}
	n.commitIndex = 1
	n.mu.Unlock()

	n.deliverCommitted()

	require.Eventually(t, func() bool {
		return len(sm.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	applied := sm.snapshot()
	assert.Equal(t, []byte("PUT x 1"), applied[0])
	assert.Equal(t, []byte("PUT y 2"), applied[1])
}
