package util

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Ids use 41 time bits, 2 node bits and 10 step bits, so every id stays
// below 2^53 and survives a round trip through a JavaScript number.
const (
	idEpochMillis = 1704067200000 // 2024-01-01T00:00:00Z
	idNodeBits    = 2
	idStepBits    = 10

	// MaxSafeID is the largest integer a float64 holds exactly.
	MaxSafeID int64 = 1<<53 - 1
	// MaxNode is the highest node number InitIDs accepts.
	MaxNode int64 = 1<<idNodeBits - 1
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
	nodeErr  error
)

// InitIDs sets the snowflake node for this process. Later calls are no-ops.
func InitIDs(nodeID int64) error {
	nodeOnce.Do(func() {
		snowflake.Epoch = idEpochMillis
		snowflake.NodeBits = idNodeBits
		snowflake.StepBits = idStepBits
		node, nodeErr = snowflake.NewNode(nodeID)
		if nodeErr != nil {
			nodeErr = fmt.Errorf("snowflake node %d (want 0-%d): %w", nodeID, MaxNode, nodeErr)
		}
	})
	return nodeErr
}

// NewID returns a time-ordered int64 id. Falls back to node 0 if InitIDs was never called.
func NewID() int64 {
	if err := InitIDs(0); err != nil {
		panic(err)
	}
	return node.Generate().Int64()
}
