// Package idgen generates human-readable transaction reference numbers.
//
// A reference is "TXN" + the UTC timestamp of the operation (yyyyMMddHHmmss)
// + the last eight digits of a snowflake id, e.g. TXN2024011514305212345678.
// The snowflake node id must be unique per running instance.
package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init sets the node id (0-1023) for this process.
func Init(workerID int64) error {
	n, err := snowflake.NewNode(workerID)
	if err != nil {
		return fmt.Errorf("idgen: %w", err)
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// NextID returns the next snowflake id. Without Init it runs as node 1.
func NextID() int64 {
	mu.Lock()
	if node == nil {
		node, _ = snowflake.NewNode(1)
	}
	n := node
	mu.Unlock()
	return n.Generate().Int64()
}

func GenerateTransactionNo(at time.Time) string {
	return fmt.Sprintf("TXN%s%08d", at.UTC().Format("20060102150405"), NextID()%100000000)
}
