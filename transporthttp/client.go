package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"raftlite/raft"
)

// Client implements raft.Transport over net/http + encoding/json, issuing
// one bounded-timeout POST per outbound RPC.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient builds a Client whose outbound calls are bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

func (c *Client) RequestVote(peer raft.PeerConfig, req *raft.RequestVoteArgs) (*raft.RequestVoteReply, error) {
	var reply raft.RequestVoteReply
	if err := c.post(peer.Address+RequestVotePath, req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) AppendEntries(peer raft.PeerConfig, req *raft.AppendEntriesArgs) (*raft.AppendEntriesReply, error) {
	var reply raft.AppendEntriesReply
	if err := c.post(peer.Address+AppendEntriesPath, req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Submit forwards a client command to a peer believed to be leader, used by
// cmd/raftctl when it is not pointed directly at the leader. Unlike post, it
// decodes the body on a non-2xx reply too, since a "not leader" rejection is
// carried in the JSON body, not just the status code.
func (c *Client) Submit(address string, command []byte) (raft.SubmitResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(submitRequest{Command: command}); err != nil {
		return raft.SubmitResult{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address+SubmitPath, &buf)
	if err != nil {
		return raft.SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return raft.SubmitResult{}, err
	}
	defer resp.Body.Close()

	var result submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return raft.SubmitResult{}, fmt.Errorf("transporthttp: status %d from %s, bad body: %w", resp.StatusCode, address, err)
	}
	if !result.Success {
		return raft.SubmitResult{}, fmt.Errorf("transporthttp: %s refused: %s", address, result.Message)
	}
	return raft.SubmitResult{Index: result.Index}, nil
}

// Status fetches a node's diagnostic snapshot over StatusPath.
func (c *Client) Status(address string) (StatusResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address+StatusPath, nil)
	if err != nil {
		return StatusResult{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StatusResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StatusResult{}, fmt.Errorf("transporthttp: status %d from %s", resp.StatusCode, address)
	}

	var sr StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return StatusResult{}, err
	}
	return sr, nil
}

func (c *Client) post(url string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transporthttp: status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
