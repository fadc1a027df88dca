package gitrepo

import (
	"context"
	"fmt"
	"sync"
)

// Call is one operation observed by a RecordingClient.
type Call struct {
	Op     string
	Target string
}

// String renders the call as "Op target".
func (c Call) String() string {
	return c.Op + " " + c.Target
}

// RecordingClient wraps a real Client and records every operation issued
// through it, in issue order. Safe for concurrent use.
type RecordingClient struct {
	real Client

	mu    sync.Mutex
	calls []Call
}

// NewRecordingClient creates a RecordingClient backed by the given real client.
func NewRecordingClient(real Client) *RecordingClient {
	return &RecordingClient{real: real}
}

// Calls returns a copy of the recorded calls.
func (r *RecordingClient) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Ops returns just the operation names of the recorded calls.
func (r *RecordingClient) Ops() []string {
	calls := r.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

func (r *RecordingClient) record(op, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Target: target})
}

// GetContents records and forwards to the real client.
func (r *RecordingClient) GetContents(ctx context.Context, owner, repo, path, ref string) (*Object, error) {
	r.record("GetContents", fmt.Sprintf("%s/%s/%s@%s", owner, repo, path, ref))
	return r.real.GetContents(ctx, owner, repo, path, ref)
}

// GetPullRequest records and forwards to the real client.
func (r *RecordingClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	r.record("GetPullRequest", fmt.Sprintf("%s/%s#%d", owner, repo, number))
	return r.real.GetPullRequest(ctx, owner, repo, number)
}

// ListCommits records and forwards to the real client.
func (r *RecordingClient) ListCommits(ctx context.Context, owner, repo string, number int) ([]Commit, error) {
	r.record("ListCommits", fmt.Sprintf("%s/%s#%d", owner, repo, number))
	return r.real.ListCommits(ctx, owner, repo, number)
}

// CreateGist records and forwards to the real client.
func (r *RecordingClient) CreateGist(ctx context.Context, req GistRequest) (*Gist, error) {
	r.record("CreateGist", req.Description)
	return r.real.CreateGist(ctx, req)
}

// CreateComment records and forwards to the real client.
func (r *RecordingClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	r.record("CreateComment", fmt.Sprintf("%s/%s#%d", owner, repo, number))
	return r.real.CreateComment(ctx, owner, repo, number, body)
}

// OpenRaw records and forwards to the real client.
func (r *RecordingClient) OpenRaw(ctx context.Context, url string) (*RawContent, error) {
	r.record("OpenRaw", url)
	return r.real.OpenRaw(ctx, url)
}
