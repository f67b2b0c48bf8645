package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner launches a node's argv. Tests substitute a fake; production
// uses ExecRunner.
type CommandRunner interface {
	Run(ctx context.Context, dir string, argv []string) error
}

// ExecRunner runs commands through os/exec, folding the tail of the combined
// output into the error on failure.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, tail(string(out), 512))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Executor walks a graph in topological order. The first failure fires
// OnFailure once; skips propagate along graph edges, so every node
// downstream of a failed or skipped node is skipped while independent
// nodes still run. CleanupDirs are removed when the walk ends, whatever
// the outcome.
type Executor struct {
	Runner      CommandRunner
	Logger      *slog.Logger
	OnFailure   func(ctx context.Context, nodeID string, err error)
	CleanupDirs []string
}

// Run executes the graph with workDir as the command working directory. It
// returns the first node failure, nil when every node ran clean.
func (e *Executor) Run(ctx context.Context, g *Graph, workDir string) error {
	defer func() {
		for _, dir := range e.CleanupDirs {
			if err := os.RemoveAll(dir); err != nil {
				e.logger().Warn("cleanup failed", "dir", dir, "error", err)
			}
		}
	}()

	order, err := g.TopoSort()
	if err != nil {
		return err
	}

	var firstErr error
	failedNode := ""
	blocked := map[string]bool{} // failed nodes and their transitive dependents
	for _, id := range order {
		n := g.nodes[id]
		upstreamBlocked := false
		for _, dep := range g.deps[id] {
			if blocked[dep] {
				upstreamBlocked = true
				break
			}
		}
		if upstreamBlocked {
			blocked[id] = true
			e.logger().Info("skipping node after upstream failure", "node", id, "failed_node", failedNode)
			continue
		}

		e.logger().Info("running node", "node", id)
		var runErr error
		if n.Command != nil {
			runErr = e.Runner.Run(ctx, workDir, n.Command)
		} else {
			runErr = n.Step(ctx)
		}
		if runErr != nil {
			blocked[id] = true
			e.logger().Error("node failed", "node", id, "error", runErr)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", id, runErr)
				failedNode = id
				if e.OnFailure != nil {
					e.OnFailure(ctx, id, runErr)
				}
			}
		}
	}
	return firstErr
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
