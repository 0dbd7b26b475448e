// raft/election.go
package raft

import (
	"time"

	"golang.org/x/sync/errgroup"
)

// startElection converts the node to Candidate, bumps the term, votes for
// itself, and fans RequestVote out to every peer concurrently. Each send
// runs in an errgroup so a panic in one peer's RPC path can't take the whole
// fan-out down silently.
func (n *Node) startElection() {
	n.mu.Lock()
	oldRole := n.role
	n.role = Candidate
	n.currentTerm++
	n.votedFor = n.id
	term := n.currentTerm
	lastLogIndex := int64(len(n.logEntries) - 1)
	var lastLogTerm uint64
	if lastLogIndex >= 0 {
		lastLogTerm = n.logEntries[lastLogIndex].Term
	}
	n.lastHeartbeat = time.Now()
	collectDeadline := n.electionTimeout
	n.electionTimeout = n.randomElectionTimeout()
	peers := append([]PeerConfig(nil), n.peers...)
	n.mu.Unlock()

	n.logStateChange(oldRole, Candidate, term)
	n.logElectionStart(term)

	votesNeeded := (len(peers)+1)/2 + 1

	if len(peers) == 0 {
		n.logElectionWon(term, 1, votesNeeded)
		n.becomeLeader(term)
		return
	}

	voteCh := make(chan bool, len(peers))
	var g errgroup.Group
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			voteCh <- n.requestVoteFrom(peer, term, lastLogIndex, lastLogTerm)
			return nil
		})
	}
	go g.Wait()

	votes := 1
	timeout := time.After(collectDeadline)
	for i := 0; i < len(peers); i++ {
		select {
		case granted := <-voteCh:
			if granted {
				votes++
				if votes >= votesNeeded {
					n.logElectionWon(term, votes, votesNeeded)
					n.becomeLeader(term)
					return
				}
			}
		case <-timeout:
			n.logElectionLost(term, votes, votesNeeded)
			return
		case <-n.shutdownCh:
			return
		}
	}
	n.logElectionLost(term, votes, votesNeeded)
}

// requestVoteFrom issues one RequestVote RPC and reports whether the peer
// granted the vote, stepping this node down if the peer's term is newer.
func (n *Node) requestVoteFrom(peer PeerConfig, term uint64, lastLogIndex int64, lastLogTerm uint64) bool {
	reply, err := n.transport.RequestVote(peer, &RequestVoteArgs{
		Term:         term,
		CandidateID:  n.id,
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
	})
	if err != nil {
		return false
	}
	if reply.Term > term {
		n.stepDown(reply.Term)
		return false
	}
	return reply.VoteGranted
}

// becomeLeader installs leader-only volatile state. It is a no-op if a
// concurrent stepDown or a newer election already moved the node out of the
// Candidate role for this term.
func (n *Node) becomeLeader(term uint64) {
	n.mu.Lock()

	if n.currentTerm != term || n.role != Candidate {
		n.mu.Unlock()
		return
	}

	oldRole := n.role
	n.role = Leader
	for _, p := range n.peers {
		n.matchIndex[p.ID] = -1
	}
	n.logStateChange(oldRole, Leader, term)
	n.mu.Unlock()

	// Assert leadership and reset every peer's election clock right away,
	// rather than waiting for the driver loop's next heartbeat tick.
	go n.broadcastAppendEntries()
}

// RequestVote is the inbound RPC handler: at most one vote per term, first
// candidate wins; log recency is only consulted when
// Config.RequireUpToDateLog opts into it.
func (n *Node) RequestVote(req *RequestVoteArgs) *RequestVoteReply {
	n.mu.Lock()

	if req.Term < n.currentTerm {
		term := n.currentTerm
		n.mu.Unlock()
		return &RequestVoteReply{Term: term, VoteGranted: false}
	}

	if req.Term > n.currentTerm {
		n.stepDownLocked(req.Term)
	}

	grant := false
	if n.votedFor == "" || n.votedFor == req.CandidateID {
		if !n.cfg.RequireUpToDateLog || n.isLogUpToDateLocked(req.LastLogIndex, req.LastLogTerm) {
			grant = true
			n.votedFor = req.CandidateID
		}
	}

	if grant {
		n.logVoteGranted(req.CandidateID, req.Term)
		n.lastHeartbeat = time.Now()
	} else {
		n.logVoteDenied(req.CandidateID, req.Term, "already voted or log not up to date")
	}

	term := n.currentTerm
	n.mu.Unlock()

	return &RequestVoteReply{Term: term, VoteGranted: grant}
}

// isLogUpToDateLocked implements the canonical Raft recency comparison, used
// only when Config.RequireUpToDateLog is set. Caller must hold mu.
func (n *Node) isLogUpToDateLocked(candidateLastIndex int64, candidateLastTerm uint64) bool {
	lastIndex := int64(len(n.logEntries) - 1)
	var lastTerm uint64
	if lastIndex >= 0 {
		lastTerm = n.logEntries[lastIndex].Term
	}
	if candidateLastTerm != lastTerm {
		return candidateLastTerm > lastTerm
	}
	return candidateLastIndex >= lastIndex
}

// stepDown converts the node to Follower upon observing a higher term,
// resetting vote state for the new term.
func (n *Node) stepDown(term uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stepDownLocked(term)
}

// stepDownLocked is stepDown's body; callers must already hold mu.
func (n *Node) stepDownLocked(term uint64) {
	if term <= n.currentTerm {
		return
	}
	oldTerm := n.currentTerm
	oldRole := n.role
	n.currentTerm = term
	n.votedFor = ""
	n.role = Follower
	n.lastHeartbeat = time.Now()
	n.electionTimeout = n.randomElectionTimeout()
	n.logStepDown(oldTerm, term)
	if oldRole != Follower {
		n.logStateChange(oldRole, Follower, term)
	}
}
