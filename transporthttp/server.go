package transporthttp

import (
	"encoding/json"
	"net/http"

	"raftlite/raft"
)

// Server exposes a *raft.Node over HTTP: one handler per RPC, registered on
// a caller-supplied mux so it composes with other routes on the same port.
type Server struct {
	node *raft.Node
}

// NewServer builds a Server for node. Call Install to attach it to a mux.
func NewServer(node *raft.Node) *Server {
	return &Server{node: node}
}

// Install registers every handler on mux.
func (s *Server) Install(mux *http.ServeMux) {
	mux.HandleFunc(RequestVotePath, s.handleRequestVote)
	mux.HandleFunc(AppendEntriesPath, s.handleAppendEntries)
	mux.HandleFunc(SubmitPath, s.handleSubmit)
	mux.HandleFunc(StatusPath, s.handleStatus)
}

func (s *Server) handleRequestVote(w http.ResponseWriter, r *http.Request) {
	var req raft.RequestVoteArgs
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reply := s.node.RequestVote(&req)
	writeJSON(w, reply)
}

func (s *Server) handleAppendEntries(w http.ResponseWriter, r *http.Request) {
	var req raft.AppendEntriesArgs
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reply := s.node.AppendEntries(&req)
	writeJSON(w, reply)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.node.Submit(req.Command)
	if err != nil {
		status := http.StatusInternalServerError
		message := err.Error()
		if err == raft.ErrNotLeader {
			status = http.StatusConflict
			message = "Not leader"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(submitResponse{Success: false, Message: message})
		return
	}
	writeJSON(w, submitResponse{Success: true, Index: result.Index})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.node.GetStatus()
	writeJSON(w, StatusResult{
		ID:          st.ID,
		Role:        st.Role.String(),
		Term:        st.Term,
		Log:         st.Log,
		CommitIndex: st.CommitIndex,
		LastApplied: st.LastApplied,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
