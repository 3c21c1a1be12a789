package pluginhost

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"forensiq/pkg/errors"
	"forensiq/pkg/types"
)

// Sandbox runs a Parser under the wall-clock, memory and CPU caps of its
// SandboxLimits, grounded on the teacher's pkg/leakdetection.ResourceMonitor
// sampling loop. RSS and CPU percentage are sampled via
// github.com/shirou/gopsutil/v3 (listed in the teacher's go.mod but
// never wired there) for the whole host process, since a sandboxed
// execution runs as goroutines inside it: memory or CPU used by other
// work in the process counts against the caps as well.
type Sandbox struct {
	limits SandboxLimits
}

// NewSandbox builds a Sandbox enforcing limits.
func NewSandbox(limits SandboxLimits) *Sandbox {
	return &Sandbox{limits: limits}
}

// threadToken is a counting semaphore of at most max slots; Acquire
// blocks while every slot is taken. Nothing in this package creates one:
// Run does not hand the parser a threadToken, so SandboxLimits.MaxThreads
// is not enforced.
type threadToken struct {
	sem chan struct{}
}

func newThreadToken(max int) *threadToken {
	if max <= 0 {
		max = 1
	}
	return &threadToken{sem: make(chan struct{}, max)}
}

// Acquire blocks until a thread slot is free or ctx is done.
func (t *threadToken) Acquire(ctx context.Context) error {
	select {
	case t.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a thread slot.
func (t *threadToken) Release() { <-t.sem }

// Run executes parser.Parse(raw) under the sandbox's wall-clock, memory
// and CPU caps (MaxThreads is not checked). Timeout
// breach surfaces errors.Sandbox with code SANDBOX_TIMEOUT; resource
// breach surfaces SANDBOX_RESOURCE_EXHAUSTED. Neither evicts the
// registry entry — eviction is the registry's decision, not the
// sandbox's (spec §4.B).
func (s *Sandbox) Run(ctx context.Context, parser types.Parser, sourceFile string, raw []byte) (*types.ParseResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.limits.MaxWallClock)
	defer cancel()

	proc, procErr := process.NewProcess(int32(os.Getpid()))

	var peakRSS uint64
	monitorDone := make(chan struct{})
	var resourceBreach atomic.Bool
	if procErr == nil {
		go s.monitor(runCtx, proc, &peakRSS, &resourceBreach, monitorDone)
	} else {
		close(monitorDone)
	}

	type outcome struct {
		result *types.ParseResult
		err    error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		res, err := parser.Parse(runCtx, raw)
		resultCh <- outcome{res, err}
	}()

	select {
	case out := <-resultCh:
		cancel()
		<-monitorDone
		if resourceBreach.Load() {
			return nil, errors.Sandbox("SANDBOX_RESOURCE_EXHAUSTED", "execute", "parser for "+sourceFile+" exceeded resource caps")
		}
		if out.err != nil {
			return nil, errors.Processing("execute", "parser for "+sourceFile+": "+out.err.Error())
		}
		return out.result, nil
	case <-runCtx.Done():
		<-monitorDone
		if resourceBreach.Load() {
			return nil, errors.Sandbox("SANDBOX_RESOURCE_EXHAUSTED", "execute", "parser for "+sourceFile+" exceeded resource caps")
		}
		return nil, errors.Sandbox("SANDBOX_TIMEOUT", "execute", "parser for "+sourceFile+" exceeded "+s.limits.MaxWallClock.String())
	}
}

// monitor polls CPU/RSS at a fixed cadence until runCtx is done, flagging
// resourceBreach the first time either cap is exceeded. It never cancels
// runCtx itself; Run's caller observes the breach flag once its own
// select unblocks, keeping cancellation ownership in one place.
func (s *Sandbox) monitor(runCtx context.Context, proc *process.Process, peakRSS *uint64, breach *atomic.Bool, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
				rssMiB := mem.RSS / (1024 * 1024)
				if rssMiB > *peakRSS {
					*peakRSS = rssMiB
				}
				if s.limits.MaxMemoryMiB > 0 && rssMiB > uint64(s.limits.MaxMemoryMiB) {
					breach.Store(true)
				}
			}
			if pct, err := proc.CPUPercent(); err == nil {
				if s.limits.MaxCPUPercent > 0 && pct > s.limits.MaxCPUPercent {
					breach.Store(true)
				}
			}
		}
	}
}
