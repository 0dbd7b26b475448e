// Command raftd runs one member of a raftlite cluster, serving the
// RequestVote/AppendEntries/Submit/Status HTTP surface on --listen.
package main

import (
	"flag"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"raftlite/raft"
	"raftlite/statemachine"
	"raftlite/transporthttp"
)

func main() {
	id := flag.String("id", "", "this node's id (required)")
	listen := flag.String("listen", ":8080", "address to listen on")
	peersFlag := flag.String("peers", "", "comma-separated id=address pairs for the rest of the cluster, e.g. node2=localhost:8081,node3=localhost:8082")
	electionMin := flag.Duration("election-min", 3*time.Second, "minimum election timeout")
	electionMax := flag.Duration("election-max", 6*time.Second, "maximum election timeout")
	heartbeat := flag.Duration("heartbeat", 1*time.Second, "leader heartbeat interval")
	rpcTimeout := flag.Duration("rpc-timeout", 500*time.Millisecond, "per-RPC outbound timeout")
	requireUpToDate := flag.Bool("require-up-to-date-log", false, "refuse votes for candidates whose log is behind ours")
	flag.Parse()

	if *id == "" {
		log.Fatal("raftd: --id is required")
	}

	peers := parsePeers(*peersFlag)

	sm := statemachine.NewKV()
	client := transporthttp.NewClient(*rpcTimeout)

	node := raft.New(raft.Config{
		ID:                 *id,
		Peers:              peers,
		Transport:          client,
		StateMachine:       sm,
		Logger:             raft.NewLogrusLogger(*id),
		ElectionTimeoutMin: *electionMin,
		ElectionTimeoutMax: *electionMax,
		HeartbeatInterval:  *heartbeat,
		RequireUpToDateLog: *requireUpToDate,
	})

	logrus.WithFields(logrus.Fields{
		"node_id": *id,
		"listen":  *listen,
		"peers":   len(peers),
	}).Info("raftd starting as Follower")

	node.Start()
	defer node.Shutdown()

	mux := http.NewServeMux()
	transporthttp.NewServer(node).Install(mux)

	log.Fatal(http.ListenAndServe(*listen, mux))
}

// parsePeers parses "id=address,id=address" into PeerConfig values.
func parsePeers(raw string) []raft.PeerConfig {
	if raw == "" {
		return nil
	}
	var peers []raft.PeerConfig
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			log.Fatalf("raftd: malformed --peers entry %q, expected id=address", pair)
		}
		peers = append(peers, raft.PeerConfig{ID: parts[0], Address: "http://" + parts[1]})
	}
	return peers
}
