package redis

import (
	"fmt"

	"github.com/cschleiden/go-approvals/core"
)

// taskKey returns the key holding the serialized task
func taskKey(keyPrefix string, taskID string) string {
	return fmt.Sprintf("%vtask:%v", keyPrefix, taskID)
}

// threadKey returns the key mapping a thread to its task. Used to enforce unique thread ids.
func threadKey(keyPrefix string, threadID string) string {
	return fmt.Sprintf("%vthread:%v", keyPrefix, threadID)
}

// tasksByCreation returns the key for the ZSET that contains all tasks sorted by creation date. The score is
// the creation time.
func tasksByCreation(keyPrefix string) string {
	return keyPrefix + "tasks-by-creation"
}

// tasksByStatus returns the key for the ZSET that contains all tasks with the given status, sorted by
// creation date.
func tasksByStatus(keyPrefix string, status core.TaskStatus) string {
	return fmt.Sprintf("%vtasks-by-status:%v", keyPrefix, status)
}

func checkpointKey(keyPrefix string, threadID string) string {
	return fmt.Sprintf("%vcheckpoint:%v", keyPrefix, threadID)
}
