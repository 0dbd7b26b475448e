// Command raftctl is an interactive client for a raftlite cluster: it
// submits commands and polls status, retrying against the next address in
// --peers whenever the current target reports it isn't leader.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"raftlite/transporthttp"
)

func main() {
	peersFlag := flag.String("peers", "", "comma-separated http addresses of the cluster, e.g. http://localhost:8080,http://localhost:8081")
	timeout := flag.Duration("timeout", 500*time.Millisecond, "per-request timeout")
	flag.Parse()

	addrs := splitAddrs(*peersFlag)
	if len(addrs) == 0 {
		log.Fatal("raftctl: --peers must name at least one node address")
	}

	client := transporthttp.NewClient(*timeout)
	leaderHint := 0

	rl, err := readline.New("raftlite> ")
	if err != nil {
		log.Fatalf("raftctl: %v", err)
	}
	defer rl.Close()

	printHelp()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			fmt.Println("disconnecting")
			return
		}
		if err != nil {
			log.Fatalf("raftctl: %v", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])

		switch cmd {
		case "PUT", "DEL":
			submitCommand(client, addrs, &leaderHint, line)

		case "STATUS":
			target := leaderHint
			if len(fields) == 2 {
				idx, err := parseIndex(fields[1], len(addrs))
				if err != nil {
					fmt.Println(err)
					continue
				}
				target = idx
			}
			printStatus(client, addrs[target])

		case "HELP":
			printHelp()

		case "QUIT", "EXIT":
			fmt.Println("disconnecting")
			return

		default:
			fmt.Printf("unknown command: %s (type HELP)\n", cmd)
		}
	}
}

func submitCommand(client *transporthttp.Client, addrs []string, leaderHint *int, command string) {
	for attempt := 0; attempt < len(addrs); attempt++ {
		addr := addrs[*leaderHint]
		result, err := client.Submit(addr, []byte(command))
		if err == nil {
			fmt.Printf("OK index=%d (leader %s)\n", result.Index, addr)
			return
		}
		fmt.Printf("%s refused (%v), trying next node\n", addr, err)
		*leaderHint = (*leaderHint + 1) % len(addrs)
	}
	fmt.Println("no node in the cluster accepted the command")
}

func printStatus(client *transporthttp.Client, addr string) {
	status, err := client.Status(addr)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	out, _ := json.MarshalIndent(status, "", "  ")
	fmt.Println(string(out))
}

func printHelp() {
	fmt.Println(`Available commands:
  PUT <key> <value>   submit a PUT command to the cluster
  DEL <key>            submit a DEL command to the cluster
  STATUS [n]           print the status of node n (default: the last known leader)
  HELP                 show this message
  QUIT / EXIT          disconnect`)
}

func splitAddrs(raw string) []string {
	var out []string
	for _, a := range strings.Split(raw, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func parseIndex(s string, n int) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(s, "%d", &idx); err != nil {
		return 0, fmt.Errorf("not a number: %s", s)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("node index out of range: %d", idx)
	}
	return idx, nil
}
