package pregel

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/graphkit/pregelgo/channel"
	"github.com/graphkit/pregelgo/checkpoint"
	"github.com/graphkit/pregelgo/emit"
)

// PregelLoop drives a compiled graph's nodes through Bulk Synchronous
// Parallel supersteps: prepare a task batch, run it, apply its writes,
// checkpoint, repeat until no node has new work, an interrupt fires, or
// the recursion limit is reached.
type PregelLoop struct {
	nodes       map[string]*PregelNode
	channelDefs map[string]channel.Definition
	saver       checkpoint.Saver
	cfg         *loopConfig
}

// NewLoop builds a PregelLoop over a fixed set of nodes and channel
// definitions, durable via saver.
func NewLoop(nodes map[string]*PregelNode, channelDefs map[string]channel.Definition, saver checkpoint.Saver, opts ...Option) (*PregelLoop, error) {
	cfg := defaultLoopConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &PregelLoop{nodes: nodes, channelDefs: channelDefs, saver: saver, cfg: cfg}, nil
}

func (l *PregelLoop) saverConfig(rc RunConfig) checkpoint.Config {
	return checkpoint.Config{ThreadID: rc.ThreadID, CheckpointNS: rc.CheckpointNS, CheckpointID: rc.CheckpointID}
}

// Run drives one execution of the graph to completion, an interrupt, or a
// terminal error. input is nil to resume an existing thread with no new
// external writes.
func (l *PregelLoop) Run(ctx context.Context, input map[string]any, rc RunConfig) (map[string]any, error) {
	if rc.ThreadID == "" {
		return nil, &Error{Code: CodeEmptyInput, Message: "RunConfig.ThreadID is required"}
	}
	recursionLimit := rc.RecursionLimit
	if recursionLimit <= 0 {
		recursionLimit = l.cfg.defaultRecursion
	}

	if l.cfg.runWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.runWallClockBudget)
		defer cancel()
	}

	scfg := l.saverConfig(rc)
	tuple, err := l.saver.GetTuple(ctx, scfg)
	if err != nil {
		return nil, ErrSaver("get_tuple", err)
	}

	var cp checkpoint.Checkpoint
	startStep := 0
	pendingByTask := map[string][]checkpoint.PendingWrite{}
	if tuple != nil {
		cp = tuple.Checkpoint.Clone()
		startStep = tuple.Metadata.Step + 1
		for _, pw := range tuple.PendingWrites {
			pendingByTask[pw.TaskID] = append(pendingByTask[pw.TaskID], pw)
		}
	} else {
		if len(input) == 0 {
			return nil, ErrEmptyInput(rc.ThreadID)
		}
		cp = checkpoint.Empty(uuid.Must(uuid.NewV7()).String(), time.Now())
	}

	channels := channel.Hydrate(l.channelDefs, cp.ChannelValues)
	versions := cp.ChannelVersions
	if versions == nil {
		versions = map[string]checkpoint.Version{}
	}
	versionsSeen := cp.VersionsSeen
	if versionsSeen == nil {
		versionsSeen = map[string]map[string]checkpoint.Version{}
	}

	if len(input) > 0 {
		writes := make([]Write, 0, len(input))
		for k, v := range input {
			writes = append(writes, Write{TaskID: "__input__", Node: "__input__", Channel: k, Value: v})
		}
		if _, err := applyWrites(channels, writes, l.saver, versions); err != nil {
			return nil, err
		}
	}

	for step, stepsRun := startStep, 0; ; step, stepsRun = step+1, stepsRun+1 {
		if stepsRun >= recursionLimit {
			return nil, ErrGraphRecursion(recursionLimit)
		}
		if err := ctx.Err(); err != nil {
			return nil, ErrCancellation(err)
		}

		updated := updatedSince(versions, versionsSeen, l.nodes)
		tasks, err := prepareNextTasks(l.nodes, channels, versions, versionsSeen, updated, step)
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			break
		}

		// A task whose id matches a pending write persisted before a prior
		// attempt at this exact step crashed mid-batch has already run;
		// reattach its recorded writes instead of re-invoking Compute.
		// Pending writes only ever address the step right after the
		// checkpoint they were loaded from, so this only applies once.
		var toRun []*Task
		writesByTask := map[string][]Write{}
		if step == startStep && len(pendingByTask) > 0 {
			for _, task := range tasks {
				pw, ok := pendingByTask[task.ID]
				if !ok {
					toRun = append(toRun, task)
					continue
				}
				ws := make([]Write, len(pw))
				for i, w := range pw {
					ws[i] = Write{TaskID: task.ID, Node: task.Node.Name, Channel: w.Channel, Value: w.Value}
				}
				writesByTask[task.ID] = ws
				l.emitReattachedEvents(rc, task, ws)
			}
		} else {
			toRun = tasks
		}

		for _, task := range toRun {
			if shouldInterrupt(rc, "before", task.Node.Name) {
				if _, err := l.commit(ctx, scfg, cp, channels, versions, versionsSeen, step, "loop"); err != nil {
					return nil, err
				}
				l.cfg.metrics.IncrementInterrupts(rc.ThreadID, "before", task.Node.Name)
				return channel.CheckpointAll(channels), &Interrupt{When: "before", Node: task.Node.Name, Step: step}
			}
		}

		markSeen(tasks, versions, versionsSeen)
		consumeAll(channels)

		parentCfg := scfg
		parentCfg.CheckpointID = cp.ID
		freshByTask, err := l.runTasks(ctx, rc, toRun, parentCfg)
		if err != nil {
			return nil, err
		}
		for id, ws := range freshByTask {
			writesByTask[id] = ws
		}
		// Writes are assembled in tasks' deterministic order (not
		// completion order, which is racy across goroutines, and not
		// reattached-then-fresh, which would reorder a crash-resumed step
		// relative to one that ran straight through) so order-sensitive
		// channels (Topic, BinaryOperatorAggregate) see the same sequence
		// regardless of whether this step crashed and resumed partway.
		var writes []Write
		for _, task := range tasks {
			writes = append(writes, writesByTask[task.ID]...)
		}

		if _, err := applyWrites(channels, writes, l.saver, versions); err != nil {
			return nil, err
		}

		if cp, err = l.commit(ctx, scfg, cp, channels, versions, versionsSeen, step, "loop"); err != nil {
			return nil, err
		}
		l.emitStepEvents(rc, rc.CheckpointNS, step, channels, writes)

		for _, task := range tasks {
			if shouldInterrupt(rc, "after", task.Node.Name) {
				l.cfg.metrics.IncrementInterrupts(rc.ThreadID, "after", task.Node.Name)
				return channel.CheckpointAll(channels), &Interrupt{When: "after", Node: task.Node.Name, Step: step}
			}
		}
	}

	return filterKeys(channel.CheckpointAll(channels), rc.OutputKeys), nil
}

// runTasks executes one superstep's task batch concurrently, with per-node
// timeout and retry policy applied around each attempt. Each task's writes
// are durably logged via PutWrites against parentCfg (the checkpoint this
// step extends) as soon as that task completes, not after the whole batch
// finishes — so a crash mid-batch still leaves the completed tasks'
// writes recoverable on resume (§4.6 step 4). A PutWrites failure aborts
// the run without touching any earlier checkpoint.
func (l *PregelLoop) runTasks(ctx context.Context, rc RunConfig, tasks []*Task, parentCfg checkpoint.Config) (map[string][]Write, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([][]Write, len(tasks))
	l.cfg.metrics.SetInflightTasks(len(tasks))
	defer l.cfg.metrics.SetInflightTasks(0)

	if containsMode(rc.StreamModes, emit.ModeDebug) {
		for _, task := range tasks {
			l.cfg.emitter.Emit(emit.Event{
				Mode:      emit.ModeDebug,
				DebugKind: emit.DebugTaskCreate,
				ThreadID:  rc.ThreadID,
				Namespace: rc.CheckpointNS,
				Step:      task.Step,
				NodeID:    task.Node.Name,
				TaskID:    task.ID,
			})
		}
	}

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			writes, err := l.runOneTask(gctx, rc, task)
			if err != nil {
				return err
			}

			pw := make([]checkpoint.PendingWrite, len(writes))
			for idx, w := range writes {
				pw[idx] = checkpoint.PendingWrite{TaskID: w.TaskID, Channel: w.Channel, Value: w.Value, Idx: idx}
			}
			durable := context.WithoutCancel(ctx)
			if err := l.saver.PutWrites(durable, parentCfg, pw, task.ID); err != nil {
				return ErrSaver("put_writes", err)
			}

			if containsMode(rc.StreamModes, emit.ModeUpdates) {
				diff := make(map[string]any, len(writes))
				for _, w := range writes {
					diff[w.Channel] = w.Value
				}
				l.cfg.emitter.Emit(emit.Event{
					Mode:      emit.ModeUpdates,
					ThreadID:  rc.ThreadID,
					Namespace: rc.CheckpointNS,
					Step:      task.Step,
					NodeID:    task.Node.Name,
					TaskID:    task.ID,
					Payload:   map[string]any{task.Node.Name: diff},
				})
			}

			results[i] = writes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTask := make(map[string][]Write, len(tasks))
	for i, task := range tasks {
		byTask[task.ID] = results[i]
	}
	return byTask, nil
}

// emitReattachedEvents surfaces the same ModeDebug/ModeUpdates events a
// freshly run task would (see runTasks), for a task whose writes were
// instead recovered from a prior checkpoint's PendingWrites: streaming
// consumers would otherwise see a gap in the event record for a step that
// crashed and resumed partway through.
func (l *PregelLoop) emitReattachedEvents(rc RunConfig, task *Task, writes []Write) {
	if l.cfg.emitter == nil {
		return
	}
	out := make(map[string]any, len(writes))
	for _, w := range writes {
		out[w.Channel] = w.Value
	}
	if containsMode(rc.StreamModes, emit.ModeDebug) {
		l.cfg.emitter.Emit(emit.Event{
			Mode:      emit.ModeDebug,
			DebugKind: emit.DebugTaskCreate,
			ThreadID:  rc.ThreadID,
			Namespace: rc.CheckpointNS,
			Step:      task.Step,
			NodeID:    task.Node.Name,
			TaskID:    task.ID,
		})
		l.cfg.emitter.Emit(emit.Event{
			Mode:      emit.ModeDebug,
			DebugKind: emit.DebugTaskResult,
			ThreadID:  rc.ThreadID,
			Namespace: rc.CheckpointNS,
			Step:      task.Step,
			NodeID:    task.Node.Name,
			TaskID:    task.ID,
			Payload:   out,
		})
	}
	if containsMode(rc.StreamModes, emit.ModeUpdates) {
		l.cfg.emitter.Emit(emit.Event{
			Mode:      emit.ModeUpdates,
			ThreadID:  rc.ThreadID,
			Namespace: rc.CheckpointNS,
			Step:      task.Step,
			NodeID:    task.Node.Name,
			TaskID:    task.ID,
			Payload:   map[string]any{task.Node.Name: out},
		})
	}
}

// runOneTask executes a single task's bound computation, retrying per its
// node policy, and validates its returned writes against the node's
// declared Writes set.
func (l *PregelLoop) runOneTask(ctx context.Context, rc RunConfig, task *Task) ([]Write, error) {
	policy := task.Node.Policy
	timeout := l.cfg.defaultNodeTimeout
	var retry *RetryPolicy
	if policy != nil {
		if policy.Timeout > 0 {
			timeout = policy.Timeout
		}
		retry = policy.RetryPolicy
	}

	maxAttempts := 1
	if retry != nil {
		maxAttempts = retry.MaxAttempts
	}
	rng := seedRNG(rc.ThreadID)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		task.Attempt = attempt
		out, err := l.callCompute(ctx, rc, timeout, task)
		if err == nil {
			return writesFrom(task, out)
		}
		lastErr = err
		if retry == nil || retry.Retryable == nil || !retry.Retryable(err) || attempt == maxAttempts-1 {
			break
		}
		l.cfg.metrics.IncrementRetries(rc.ThreadID, task.Node.Name)
		delay := computeBackoff(attempt, retry.BaseDelay, retry.MaxDelay, rng)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ErrCancellation(ctx.Err())
		}
	}
	return nil, ErrGraphValue(task.Node.Name, lastErr)
}

func (l *PregelLoop) callCompute(ctx context.Context, rc RunConfig, timeout time.Duration, task *Task) (out map[string]any, err error) {
	taskCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	taskCtx = withRunConfig(withSubgraphGuard(taskCtx), rc)

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		l.cfg.metrics.RecordTaskLatency("", task.Node.Name, time.Since(start), status)
		if !containsMode(rc.StreamModes, emit.ModeDebug) {
			return
		}
		l.cfg.emitter.Emit(emit.Event{
			Mode:      emit.ModeDebug,
			DebugKind: emit.DebugTaskResult,
			ThreadID:  rc.ThreadID,
			Namespace: rc.CheckpointNS,
			Step:      task.Step,
			NodeID:    task.Node.Name,
			TaskID:    task.ID,
			Payload:   out,
		})
	}()

	return task.Node.Compute(taskCtx, task.Input)
}

func writesFrom(task *Task, out map[string]any) ([]Write, error) {
	writes := make([]Write, 0, len(out))
	for ch, v := range out {
		if !task.Node.writesChannel(ch) {
			return nil, ErrInvalidNodeReturnValue(task.Node.Name, "write to undeclared channel "+ch)
		}
		writes = append(writes, Write{TaskID: task.ID, Node: task.Node.Name, Channel: ch, Value: v})
	}
	return writes, nil
}

// commit persists the current channel state as a new checkpoint, never
// cancelling the saver write even if the run's context is done: once a
// superstep's effects are computed, losing the checkpoint would mean
// re-running side effects on resume. This step's task writes were already
// durably logged per-task by runTasks against the checkpoint being
// extended (prev.ID); the checkpoint committed here starts with no
// pending writes of its own. A Put failure is returned as a SAVER_ERROR.
func (l *PregelLoop) commit(
	ctx context.Context,
	scfg checkpoint.Config,
	prev checkpoint.Checkpoint,
	channels map[string]channel.Channel,
	versions map[string]checkpoint.Version,
	versionsSeen map[string]map[string]checkpoint.Version,
	step int,
	source string,
) (checkpoint.Checkpoint, error) {
	durable := context.WithoutCancel(ctx)

	next := checkpoint.Checkpoint{
		ID:              uuid.Must(uuid.NewV7()).String(),
		TS:              time.Now(),
		ChannelValues:   channel.CheckpointAll(channels),
		ChannelVersions: copyVersions(versions),
		VersionsSeen:    copyVersionsSeen(versionsSeen),
	}

	if _, err := l.saver.Put(durable, scfg, next, checkpoint.Metadata{Source: source, Step: step}, versions); err != nil {
		return next, ErrSaver("put", err)
	}
	l.cfg.metrics.IncrementCheckpoints(scfg.ThreadID)
	return next, nil
}

// GetState returns the latest checkpoint's channel values for a thread.
func (l *PregelLoop) GetState(ctx context.Context, rc RunConfig) (map[string]any, error) {
	tuple, err := l.saver.GetTuple(ctx, l.saverConfig(rc))
	if err != nil {
		return nil, ErrSaver("get_tuple", err)
	}
	if tuple == nil {
		return nil, nil
	}
	return filterKeys(tuple.Checkpoint.ChannelValues, rc.OutputKeys), nil
}

// GetStateHistory returns a thread's checkpoint history, newest first.
func (l *PregelLoop) GetStateHistory(ctx context.Context, rc RunConfig, opts checkpoint.ListOptions) ([]checkpoint.Tuple, error) {
	list, err := l.saver.List(ctx, l.saverConfig(rc), opts)
	if err != nil {
		return nil, ErrSaver("list", err)
	}
	return list, nil
}

// UpdateState applies out-of-band writes to a thread's channels (e.g. a
// human editing state at an interrupt) and commits a new checkpoint with
// Metadata.Source "update", without running any node.
func (l *PregelLoop) UpdateState(ctx context.Context, rc RunConfig, values map[string]any) (checkpoint.Config, error) {
	scfg := l.saverConfig(rc)
	tuple, err := l.saver.GetTuple(ctx, scfg)
	if err != nil {
		return checkpoint.Config{}, ErrSaver("get_tuple", err)
	}
	var cp checkpoint.Checkpoint
	if tuple != nil {
		cp = tuple.Checkpoint.Clone()
	} else {
		cp = checkpoint.Empty(uuid.Must(uuid.NewV7()).String(), time.Now())
	}

	channels := channel.Hydrate(l.channelDefs, cp.ChannelValues)
	versions := cp.ChannelVersions
	if versions == nil {
		versions = map[string]checkpoint.Version{}
	}

	writes := make([]Write, 0, len(values))
	for k, v := range values {
		writes = append(writes, Write{TaskID: "__update__", Node: "__update__", Channel: k, Value: v})
	}
	if _, err := applyWrites(channels, writes, l.saver, versions); err != nil {
		return checkpoint.Config{}, err
	}

	next := checkpoint.Checkpoint{
		ID:              uuid.Must(uuid.NewV7()).String(),
		TS:              time.Now(),
		ChannelValues:   channel.CheckpointAll(channels),
		ChannelVersions: copyVersions(versions),
		VersionsSeen:    copyVersionsSeen(cp.VersionsSeen),
	}
	newCfg, err := l.saver.Put(ctx, scfg, next, checkpoint.Metadata{Source: "update"}, versions)
	if err != nil {
		return checkpoint.Config{}, ErrSaver("put", err)
	}
	return newCfg, nil
}

func copyVersions(v map[string]checkpoint.Version) map[string]checkpoint.Version {
	out := make(map[string]checkpoint.Version, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func copyVersionsSeen(v map[string]map[string]checkpoint.Version) map[string]map[string]checkpoint.Version {
	out := make(map[string]map[string]checkpoint.Version, len(v))
	for node, seen := range v {
		inner := make(map[string]checkpoint.Version, len(seen))
		for ch, ver := range seen {
			inner[ch] = ver
		}
		out[node] = inner
	}
	return out
}

func filterKeys(m map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		return m
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

// updatedSince reports every channel with a version recorded at all, since
// prepareNextTasks itself narrows that down per-node by comparing against
// versionsSeen. On the very first step (no node has seen anything yet)
// this surfaces every channel the input phase wrote.
func updatedSince(versions map[string]checkpoint.Version, _ map[string]map[string]checkpoint.Version, _ map[string]*PregelNode) map[string]struct{} {
	out := make(map[string]struct{}, len(versions))
	for name := range versions {
		out[name] = struct{}{}
	}
	return out
}

// containsMode reports whether mode appears in modes.
func containsMode(modes []emit.Mode, mode emit.Mode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
