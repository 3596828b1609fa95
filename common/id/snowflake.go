package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// MaxNodeID is the largest node id the default snowflake layout accepts.
const MaxNodeID = 1023

var (
	node    *snowflake.Node
	initErr error
	once    sync.Once
)

// Init initializes the Snowflake node with the given node ID. Only the first
// call has an effect.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a time-ordered unique id. Callers that never ran Init get node 0.
func New() int64 {
	if err := Init(0); err != nil {
		panic("id: snowflake node unavailable: " + err.Error())
	}
	return node.Generate().Int64()
}
