// Package transporthttp implements the wire transport for raftlite: plain
// JSON bodies over net/http, POST for the RPCs and submit, GET for status.
package transporthttp

import "raftlite/raft"

const (
	RequestVotePath   = "/request_vote"
	AppendEntriesPath = "/append_entries"
	SubmitPath        = "/submit"
	StatusPath        = "/status"
)

// StatusResult is the JSON shape returned by StatusPath: a diagnostic
// snapshot of a node's term, role, log, and commit/apply progress.
type StatusResult struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	Term        uint64          `json:"term"`
	Log         []raft.LogEntry `json:"log"`
	CommitIndex int64           `json:"commit_index"`
	LastApplied int64           `json:"last_applied"`
}

// submitRequest is the JSON body accepted by SubmitPath.
type submitRequest struct {
	Command []byte `json:"command"`
}

// submitResponse is the JSON body returned by SubmitPath:
// {success:true, index:N} on acceptance or {success:false, index:0,
// message:"..."} when the node refuses the command (most commonly because it
// isn't leader).
type submitResponse struct {
	Success bool   `json:"success"`
	Index   int64  `json:"index"`
	Message string `json:"message,omitempty"`
}

// errorResponse is returned for a malformed request body.
type errorResponse struct {
	Error string `json:"error"`
}
