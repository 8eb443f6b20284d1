package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCloneIsIndependent(t *testing.T) {
	orig := Empty("cp1", time.Now())
	orig.ChannelValues["x"] = 1
	orig.ChannelVersions["x"] = "1"
	orig.VersionsSeen["node-a"] = map[string]Version{"x": "1"}
	orig.PendingSends = []any{"pending"}

	clone := orig.Clone()
	clone.ChannelValues["x"] = 2
	clone.ChannelVersions["x"] = "2"
	clone.VersionsSeen["node-a"]["x"] = "2"
	clone.PendingSends[0] = "mutated"

	assert.Equal(t, 1, orig.ChannelValues["x"])
	assert.Equal(t, Version("1"), orig.ChannelVersions["x"])
	assert.Equal(t, Version("1"), orig.VersionsSeen["node-a"]["x"])
	assert.Equal(t, "pending", orig.PendingSends[0])
}

func TestEmptyCheckpointHasNoValues(t *testing.T) {
	cp := Empty("cp1", time.Now())
	assert.Empty(t, cp.ChannelValues)
	assert.Empty(t, cp.ChannelVersions)
	assert.Empty(t, cp.VersionsSeen)
	assert.Nil(t, cp.PendingSends)
}
