package raft

import (
	"github.com/sirupsen/logrus"
)

// Logger is the event-oriented logging surface a Node uses. The default
// implementation wraps logrus so every event carries structured fields
// instead of a formatted free-text line.
type Logger interface {
	WithField(key string, value interface{}) Logger
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
}

// logrusLogger adapts *logrus.Entry to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds the default Logger for a node, tagging every line
// with node_id so a multi-node log stream stays greppable.
func NewLogrusLogger(nodeID string) Logger {
	return &logrusLogger{entry: logrus.WithField("node_id", nodeID)}
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *logrusLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *logrusLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }

// Event helpers below give each notable state transition its own structured
// log line instead of scattering ad hoc fields at each call site.

func (n *Node) logStateChange(old, new Role, term uint64) {
	n.log.WithField("term", term).WithField("from", old).WithField("to", new).
		Info("role transition")
}

func (n *Node) logElectionStart(term uint64) {
	n.log.WithField("term", term).Info("starting election")
}

func (n *Node) logElectionWon(term uint64, votes, needed int) {
	n.log.WithField("term", term).WithField("votes", votes).WithField("needed", needed).
		Info("won election")
}

func (n *Node) logElectionLost(term uint64, votes, needed int) {
	n.log.WithField("term", term).WithField("votes", votes).WithField("needed", needed).
		Info("election did not reach a majority")
}

func (n *Node) logVoteGranted(candidateID string, term uint64) {
	n.log.WithField("candidate", candidateID).WithField("term", term).Info("granted vote")
}

func (n *Node) logVoteDenied(candidateID string, term uint64, reason string) {
	n.log.WithField("candidate", candidateID).WithField("term", term).WithField("reason", reason).
		Debug("denied vote")
}

func (n *Node) logStepDown(oldTerm, newTerm uint64) {
	n.log.WithField("from_term", oldTerm).WithField("to_term", newTerm).Info("stepping down")
}

func (n *Node) logCommit(index int64, term uint64) {
	n.log.WithField("index", index).WithField("term", term).Info("advanced commit index")
}

func (n *Node) logApply(index int64) {
	n.log.WithField("index", index).Debug("applied command to state machine")
}
