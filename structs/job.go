package structs

import (
	"encoding/json"
	"fmt"
)

// Job is one execution request for the watchdog. All keys are required.
type Job struct {
	Command       string `json:"command"`
	Stdin         string `json:"stdin"`
	TimeoutMS     int64  `json:"timeoutMS"`
	MemoryLimitMB int64  `json:"memoryLimitMB"`
	UID           int    `json:"uid"`
	GID           int    `json:"gid"`
}

// rawJob stages decoding so that a missing key can be told apart from a
// zero value.
type rawJob struct {
	Command       *string `json:"command"`
	Stdin         *string `json:"stdin"`
	TimeoutMS     *int64  `json:"timeoutMS"`
	MemoryLimitMB *int64  `json:"memoryLimitMB"`
	UID           *int    `json:"uid"`
	GID           *int    `json:"gid"`
}

// ParseJob decodes a job spec. The error text is the diagnostic the caller
// prints, so it carries the offending key name.
func ParseJob(data []byte) (*Job, error) {
	var raw rawJob
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("Error parsing input JSON: %v", err)
	}

	missing := ""
	switch {
	case raw.Command == nil:
		missing = "command"
	case raw.Stdin == nil:
		missing = "stdin"
	case raw.TimeoutMS == nil:
		missing = "timeoutMS"
	case raw.MemoryLimitMB == nil:
		missing = "memoryLimitMB"
	case raw.UID == nil:
		missing = "uid"
	case raw.GID == nil:
		missing = "gid"
	}
	if missing != "" {
		return nil, fmt.Errorf("Key not found: %s", missing)
	}

	if *raw.TimeoutMS < 0 || *raw.MemoryLimitMB < 0 {
		return nil, fmt.Errorf("Error parsing input JSON: negative limit")
	}

	return &Job{
		Command:       *raw.Command,
		Stdin:         *raw.Stdin,
		TimeoutMS:     *raw.TimeoutMS,
		MemoryLimitMB: *raw.MemoryLimitMB,
		UID:           *raw.UID,
		GID:           *raw.GID,
	}, nil
}

// QueuedJob is the daemon message envelope: a job plus the identifier the
// control server uses to match the verdict callback.
type QueuedJob struct {
	JobID int64 `json:"job_id"`
	Job
}
