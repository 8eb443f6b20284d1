package pregel

import (
	"sort"

	"github.com/graphkit/pregelgo/channel"
	"github.com/graphkit/pregelgo/checkpoint"
)

// localRead assembles a node's Compute input from the channel map per its
// ChannelSpec. A ReadSingle spec propagates ErrEmptyChannel as a hard
// failure — a node that declares a single required input has nothing
// sensible to run with. ReadList/ReadMap specs tolerate unset channels by
// omitting them, since multi-channel reads are usually "whatever has
// arrived so far".
func localRead(nodeName string, spec ChannelSpec, channels map[string]channel.Channel) (any, error) {
	switch spec.Shape {
	case ReadSingle:
		name := spec.Channels[0]
		ch, ok := channels[name]
		if !ok {
			return nil, ErrInvalidNodeReturnValue(nodeName, "unknown input channel "+name)
		}
		val, err := ch.Get()
		if err != nil {
			return nil, ErrEmptyChannel(nodeName, name, err)
		}
		return val, nil

	case ReadList:
		out := make([]any, 0, len(spec.Channels))
		for _, name := range spec.Channels {
			ch, ok := channels[name]
			if !ok {
				continue
			}
			val, err := ch.Get()
			if err != nil {
				continue
			}
			out = append(out, val)
		}
		return out, nil

	case ReadMap:
		out := make(map[string]any, len(spec.Channels))
		for _, name := range spec.Channels {
			ch, ok := channels[name]
			if !ok {
				continue
			}
			val, err := ch.Get()
			if err != nil {
				continue
			}
			out[name] = val
		}
		return out, nil
	}
	return nil, ErrInvalidNodeReturnValue(nodeName, "unknown read shape")
}

// prepareNextTasks scans every node for triggers whose channel version has
// advanced past what that node last observed, and returns the batch of
// tasks the next superstep should run, sorted by node name for a
// deterministic task order independent of map iteration.
func prepareNextTasks(
	nodes map[string]*PregelNode,
	channels map[string]channel.Channel,
	versions map[string]checkpoint.Version,
	versionsSeen map[string]map[string]checkpoint.Version,
	updated map[string]struct{},
	step int,
) ([]*Task, error) {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var tasks []*Task
	for _, name := range names {
		node := nodes[name]
		seen := versionsSeen[name]

		var fired []string
		for _, trigger := range node.Triggers {
			if _, touched := updated[trigger]; !touched {
				continue
			}
			if seen != nil {
				if last, ok := seen[trigger]; ok && last >= versions[trigger] {
					continue
				}
			}
			fired = append(fired, trigger)
		}
		if len(fired) == 0 {
			continue
		}

		input, err := localRead(name, node.Reads, channels)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, &Task{
			ID:       computeTaskID(step, name, fired),
			Step:     step,
			Node:     node,
			Input:    input,
			Triggers: fired,
		})
	}
	return tasks, nil
}

// markSeen records, for every task in a batch the loop has committed to
// running this step, the trigger channel versions it observed. It must be
// called only once the loop is certain the batch will actually execute —
// calling it before an interrupt-before pause would make the node's
// trigger look "already seen" on resume, so the node would never fire.
func markSeen(tasks []*Task, versions map[string]checkpoint.Version, versionsSeen map[string]map[string]checkpoint.Version) {
	for _, task := range tasks {
		seen := versionsSeen[task.Node.Name]
		if seen == nil {
			seen = make(map[string]checkpoint.Version, len(task.Node.Triggers))
			versionsSeen[task.Node.Name] = seen
		}
		for _, trigger := range task.Node.Triggers {
			if v, ok := versions[trigger]; ok {
				seen[trigger] = v
			}
		}
	}
}

// applyWrites folds a superstep's task writes into the channel map,
// grouped by destination channel so each channel's reducer sees every
// write from the step in task order. It returns the set of channel names
// whose observable value actually changed, and bumps their version via
// saver so prepareNextTasks can detect the change next step.
func applyWrites(
	channels map[string]channel.Channel,
	writes []Write,
	saver interface {
		GetNextVersion(checkpoint.Version, string) checkpoint.Version
	},
	versions map[string]checkpoint.Version,
) (map[string]struct{}, error) {
	byChannel := make(map[string][]any)
	order := make([]string, 0)
	for _, w := range writes {
		if _, ok := byChannel[w.Channel]; !ok {
			order = append(order, w.Channel)
		}
		byChannel[w.Channel] = append(byChannel[w.Channel], w.Value)
	}

	updated := make(map[string]struct{})
	for _, name := range order {
		ch, ok := channels[name]
		if !ok {
			return nil, ErrInvalidNodeReturnValue("", "write to unknown channel "+name)
		}
		changed, err := ch.Update(byChannel[name])
		if err != nil {
			return nil, ErrInvalidUpdate(name, err)
		}
		if changed {
			versions[name] = saver.GetNextVersion(versions[name], name)
			updated[name] = struct{}{}
		}
	}
	return updated, nil
}

// consumeAll invokes Consume on every channel after a superstep's tasks
// have all read their inputs, so Ephemeral channels reset and become
// ErrEmptyChannel again starting next step.
func consumeAll(channels map[string]channel.Channel) {
	for _, ch := range channels {
		ch.Consume()
	}
}

// shouldInterrupt reports whether the run should pause before scheduling
// (when="before") or after completing (when="after") the named node,
// per the run's interrupt lists.
func shouldInterrupt(cfg RunConfig, when, node string) bool {
	if when == "before" {
		return cfg.interruptsBefore(node)
	}
	return cfg.interruptsAfter(node)
}
