// Package attachment implements attachment gating (spec component C8):
// routing file paths referenced in a worker's prompt through a dedicated
// approval-gated read path before they are attached to an LLM message.
package attachment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/relayforge/workerflow/runtime/agent/approval"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
)

// Resolved is one successfully gated and read attachment.
type Resolved struct {
	Path  string
	Bytes []byte
}

// Gate resolves attachment paths against a project root, approving each
// absolute path at most once per Runtime (session-scoped cache, spec §4.8).
// Gate is safe for concurrent use; one instance is shared by every CallScope
// within a Runtime.
type Gate struct {
	projectRoot string
	policy      *approval.Policy

	mu       sync.Mutex
	approved map[string]bool
}

// New constructs a Gate rooted at projectRoot, using policy for approval
// decisions.
func New(projectRoot string, policy *approval.Policy) *Gate {
	return &Gate{projectRoot: projectRoot, policy: policy, approved: make(map[string]bool)}
}

// Resolve approves and reads each path in paths, in order. On the first
// denial or read error the whole call fails fast (spec: "the whole turn
// fails fast"), matching the worker turn's attachment-resolution step.
func (g *Gate) Resolve(ctx context.Context, paths []string) ([]Resolved, error) {
	out := make([]Resolved, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(g.projectRoot, p)
		}
		if err := g.approve(ctx, abs); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, rerr.FromError(rerr.AttachmentDenied, fmt.Sprintf("reading attachment %q", abs), err)
		}
		out = append(out, Resolved{Path: abs, Bytes: data})
	}
	return out, nil
}

func (g *Gate) approve(ctx context.Context, abs string) error {
	g.mu.Lock()
	if g.approved[abs] {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	decision, err := g.policy.Resolve(ctx, "__attachment_read__", abs, approval.ToolConfig{}, nil)
	if err != nil {
		return rerr.FromError(rerr.AttachmentDenied, fmt.Sprintf("approving attachment %q", abs), err)
	}
	if !decision.Approved {
		return rerr.New(rerr.AttachmentDenied, fmt.Sprintf("attachment %q denied", abs))
	}

	g.mu.Lock()
	g.approved[abs] = true
	g.mu.Unlock()
	return nil
}
