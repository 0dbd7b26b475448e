package raft

import (
	"time"

	"golang.org/x/sync/errgroup"
)

// broadcastAppendEntries is the leader's per-tick replication round: it sends
// its entire log to every peer, fanned out concurrently with errgroup, then
// folds matching peer progress into matchIndex under the lock once replies
// are in. Sending the whole log every round (instead of a diff keyed by a
// per-peer next-index) trades bandwidth for a much simpler follower-side
// reconciliation rule: accept any log at least as long as your own.
func (n *Node) broadcastAppendEntries() {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	term := n.currentTerm
	leaderID := n.id
	leaderCommit := n.commitIndex
	entries := append([]LogEntry(nil), n.logEntries...)
	peers := append([]PeerConfig(nil), n.peers...)
	n.mu.Unlock()

	args := &AppendEntriesArgs{
		Term:         term,
		LeaderID:     leaderID,
		LeaderCommit: leaderCommit,
		Entries:      entries,
	}

	type result struct {
		peer  PeerConfig
		reply *AppendEntriesReply
	}
	results := make(chan result, len(peers))
	var g errgroup.Group
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			reply, err := n.transport.AppendEntries(peer, args)
			if err != nil {
				return nil
			}
			results <- result{peer: peer, reply: reply}
			return nil
		})
	}
	g.Wait()
	close(results)

	matched := int64(len(entries) - 1)
	n.mu.Lock()
	for r := range results {
		if n.role != Leader || n.currentTerm != term {
			break
		}
		if r.reply.Term > term {
			n.mu.Unlock()
			n.stepDown(r.reply.Term)
			return
		}
		if r.reply.Success {
			n.matchIndex[r.peer.ID] = matched
		}
	}
	n.mu.Unlock()
}

// AppendEntries is the inbound RPC handler. A request with Term >=
// currentTerm always resets the election clock (it is proof of a live
// leader) and, if the sender's log is at least as long as ours, replaces our
// log wholesale with the sender's — the simplified full-replication rule in
// place of index/term conflict resolution.
func (n *Node) AppendEntries(req *AppendEntriesArgs) *AppendEntriesReply {
	n.mu.Lock()

	if req.Term < n.currentTerm {
		term := n.currentTerm
		n.mu.Unlock()
		return &AppendEntriesReply{Term: term, Success: false}
	}

	n.stepDownLocked(req.Term)
	if n.role == Candidate && req.Term >= n.currentTerm {
		// A live leader at term >= ours outranks a candidacy even when the
		// term number didn't change: two nodes can independently start
		// elections at the same term, and only one of them gets to keep
		// running it.
		oldRole := n.role
		n.role = Follower
		n.electionTimeout = n.randomElectionTimeout()
		n.logStateChange(oldRole, Follower, n.currentTerm)
	}
	n.lastHeartbeat = time.Now()

	if len(req.Entries) >= len(n.logEntries) {
		n.logEntries = append([]LogEntry(nil), req.Entries...)
	}

	if req.LeaderCommit > n.commitIndex {
		newCommit := minInt64(req.LeaderCommit, int64(len(n.logEntries)-1))
		if newCommit > n.commitIndex {
			n.commitIndex = newCommit
			n.logCommit(n.commitIndex, n.currentTerm)
		}
	}

	term := n.currentTerm
	n.mu.Unlock()

	n.deliverCommitted()

	return &AppendEntriesReply{Term: term, Success: true}
}

// Submit appends a new command to the log if this node is currently Leader.
// It does not wait for replication or commit; callers poll Status to observe
// when the entry commits.
func (n *Node) Submit(command []byte) (SubmitResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	select {
	case <-n.shutdownCh:
		return SubmitResult{}, ErrShuttingDown
	default:
	}

	if n.role != Leader {
		return SubmitResult{}, ErrNotLeader
	}

	n.logEntries = append(n.logEntries, LogEntry{Term: n.currentTerm, Command: command})
	index := int64(len(n.logEntries) - 1)
	return SubmitResult{Index: index}, nil
}
