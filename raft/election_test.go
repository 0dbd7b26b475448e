// raft/election_test.go
package raft

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport routes RPCs directly to in-process Nodes, replacing the real
// socket dial a production Transport would do, so election and replication
// behavior can be exercised deterministically without a network.
type fakeTransport struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	// dropped, if set, suppresses delivery to the named peer id; used to
	// simulate a partitioned or crashed peer.
	dropped map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nodes: make(map[string]*Node), dropped: make(map[string]bool)}
}

func (f *fakeTransport) register(n *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[n.ID()] = n
}

func (f *fakeTransport) drop(id string, drop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped[id] = drop
}

func (f *fakeTransport) peer(id string) (*Node, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.dropped[id] {
		return nil, false
	}
	n, ok := f.nodes[id]
	return n, ok
}

func (f *fakeTransport) RequestVote(peer PeerConfig, req *RequestVoteArgs) (*RequestVoteReply, error) {
	n, ok := f.peer(peer.ID)
	if !ok {
		return nil, fmt.Errorf("fakeTransport: peer %s unreachable", peer.ID)
	}
	return n.RequestVote(req), nil
}

func (f *fakeTransport) AppendEntries(peer PeerConfig, req *AppendEntriesArgs) (*AppendEntriesReply, error) {
	n, ok := f.peer(peer.ID)
	if !ok {
		return nil, fmt.Errorf("fakeTransport: peer %s unreachable", peer.ID)
	}
	return n.AppendEntries(req), nil
}

// noopStateMachine discards every committed command, for tests that only
// care about election/replication bookkeeping.
type noopStateMachine struct{}

func (noopStateMachine) Apply(command []byte) error { return nil }

func testConfig(id string, peers []PeerConfig, transport Transport) Config {
	return Config{
		ID:                 id,
		Peers:              peers,
		Transport:          transport,
		StateMachine:       noopStateMachine{},
		ElectionTimeoutMin: 60 * time.Millisecond,
		ElectionTimeoutMax: 120 * time.Millisecond,
		HeartbeatInterval:  20 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
	}
}

// newTestCluster builds n Nodes wired to a shared fakeTransport.
func newTestCluster(n int) ([]*Node, *fakeTransport) {
	transport := newFakeTransport()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("node%d", i+1)
	}

	nodes := make([]*Node, n)
	for i, id := range ids {
		var peers []PeerConfig
		for j, otherID := range ids {
			if j != i {
				peers = append(peers, PeerConfig{ID: otherID})
			}
		}
		nodes[i] = New(testConfig(id, peers, transport))
	}
	for _, node := range nodes {
		transport.register(node)
	}
	return nodes, transport
}

func shutdownCluster(nodes []*Node) {
	for _, node := range nodes {
		node.Shutdown()
	}
}

func countLeaders(nodes []*Node) int {
	count := 0
	for _, node := range nodes {
		if _, isLeader := node.GetState(); isLeader {
			count++
		}
	}
	return count
}

func TestInitialState(t *testing.T) {
	nodes, _ := newTestCluster(1)
	n := nodes[0]
	defer n.Shutdown()

	term, isLeader := n.GetState()
	assert.Equal(t, uint64(0), term)
	assert.False(t, isLeader)
	assert.Equal(t, Follower, n.getRole())
}

func TestSingleNodeElection(t *testing.T) {
	nodes, _ := newTestCluster(1)
	defer shutdownCluster(nodes)

	nodes[0].Start()
	time.Sleep(300 * time.Millisecond)

	_, isLeader := nodes[0].GetState()
	assert.True(t, isLeader, "single node cluster must elect itself")
}

func TestBasicElection(t *testing.T) {
	nodes, _ := newTestCluster(3)
	defer shutdownCluster(nodes)

	for _, n := range nodes {
		n.Start()
	}
	time.Sleep(500 * time.Millisecond)

	require.Equal(t, 1, countLeaders(nodes))

	terms := make(map[uint64]int)
	for _, n := range nodes {
		term, _ := n.GetState()
		terms[term]++
	}
	assert.Len(t, terms, 1, "all nodes should agree on the term")
}

func TestReElection(t *testing.T) {
	nodes, _ := newTestCluster(3)
	defer shutdownCluster(nodes)

	for _, n := range nodes {
		n.Start()
	}
	time.Sleep(500 * time.Millisecond)

	var leader *Node
	for _, n := range nodes {
		if _, isLeader := n.GetState(); isLeader {
			leader = n
			break
		}
	}
	require.NotNil(t, leader)

	oldTerm, _ := leader.GetState()
	leader.Shutdown()

	time.Sleep(500 * time.Millisecond)

	var remaining []*Node
	for _, n := range nodes {
		if n != leader {
			remaining = append(remaining, n)
		}
	}

	require.Equal(t, 1, countLeaders(remaining))
	newTerm, _ := remaining[0].GetState()
	assert.Greater(t, newTerm, oldTerm)
}

func TestOneVotePerTerm(t *testing.T) {
	nodes, _ := newTestCluster(3)
	n := nodes[0]
	defer shutdownCluster(nodes)

	resp1 := n.RequestVote(&RequestVoteArgs{Term: 1, CandidateID: "node2"})
	assert.True(t, resp1.VoteGranted)

	resp2 := n.RequestVote(&RequestVoteArgs{Term: 1, CandidateID: "node3"})
	assert.False(t, resp2.VoteGranted, "must not grant a second vote in the same term")
}

func TestVoteRefusalForOutdatedLogWhenRequired(t *testing.T) {
	nodes, _ := newTestCluster(2)
	n := nodes[0]
	n.cfg.RequireUpToDateLog = true
	defer n.Shutdown()

	n.mu.Lock()
	n.logEntries = append(n.logEntries, LogEntry{Term: 5, Command: []byte("x")})
	n.currentTerm = 5
	n.mu.Unlock()

	resp := n.RequestVote(&RequestVoteArgs{
		Term:         6,
		CandidateID:  "node2",
		LastLogIndex: 0,
		LastLogTerm:  3,
	})
	assert.False(t, resp.VoteGranted, "candidate with an older log term should be refused when recency is required")
}

func TestStepDownOnHigherTerm(t *testing.T) {
	nodes, _ := newTestCluster(2)
	n := nodes[0]
	defer n.Shutdown()

	n.mu.Lock()
	n.role = Leader
	n.currentTerm = 3
	n.mu.Unlock()

	n.stepDown(7)

	term, isLeader := n.GetState()
	assert.Equal(t, uint64(7), term)
	assert.False(t, isLeader)
}
