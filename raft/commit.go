package raft

// commitAdvance is the leader-only majority check run once per heartbeat
// tick: the highest log index acknowledged by a majority of the cluster
// (leader included) becomes the new commitIndex. An index only counts if its
// entry was proposed in the current term, which rules out committing a
// previous leader's uncommitted tail purely by replication count.
func (n *Node) commitAdvance() {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	majority := (len(n.peers)+1)/2 + 1

	newCommit := n.commitIndex
	for idx := int64(len(n.logEntries) - 1); idx > n.commitIndex; idx-- {
		if n.logEntries[idx].Term != n.currentTerm {
			continue
		}
		acks := 1 // leader counts itself
		for _, matched := range n.matchIndex {
			if matched >= idx {
				acks++
			}
		}
		if acks >= majority {
			newCommit = idx
			break
		}
	}

	if newCommit > n.commitIndex {
		n.commitIndex = newCommit
		n.logCommit(n.commitIndex, n.currentTerm)
	}
	n.mu.Unlock()

	n.deliverCommitted()
}

// deliverCommitted pushes every entry between lastApplied and commitIndex
// onto applyCh in ascending order, then advances lastApplied. The snapshot
// is taken under the lock and the channel send happens outside it, so a
// slow or blocked state machine consumer cannot stall RPC handling.
func (n *Node) deliverCommitted() {
	n.mu.Lock()
	var pending []ApplyMsg
	for idx := n.lastApplied + 1; idx <= n.commitIndex; idx++ {
		pending = append(pending, ApplyMsg{
			Index:   idx,
			Term:    n.logEntries[idx].Term,
			Command: n.logEntries[idx].Command,
		})
	}
	if len(pending) > 0 {
		n.lastApplied = pending[len(pending)-1].Index
	}
	n.mu.Unlock()

	for _, msg := range pending {
		select {
		case n.applyCh <- msg:
		case <-n.shutdownCh:
			return
		}
	}
}

// applyLoop is the single consumer of applyCh, delivering committed commands
// to the external state machine strictly in order.
func (n *Node) applyLoop() {
	for {
		select {
		case msg := <-n.applyCh:
			if n.sm != nil {
				if err := n.sm.Apply(msg.Command); err != nil {
					n.log.WithField("index", msg.Index).WithField("err", err).Warn("state machine apply failed")
					continue
				}
			}
			n.logApply(msg.Index)
		case <-n.shutdownCh:
			return
		}
	}
}
