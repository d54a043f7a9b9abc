package imagequeue

import (
	"fmt"
	"time"
)

// Job is one unit of image-analysis work.
type Job struct {
	UserID      int64
	ChatID      int64
	MessageID   int64
	FileID      string
	Caption     string
	Payload     []byte
	SubmittedAt time.Time
}

// identity derives the synthetic in-flight key. Two submissions collide
// only when user, originating message, and submission second all match.
func (j Job) identity() string {
	return fmt.Sprintf("%d:%d:%d", j.UserID, j.MessageID, j.SubmittedAt.Unix())
}

// Result is the settled outcome of a job.
type Result struct {
	Text     string
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Stats aggregates queue bookkeeping for the admin surface.
type Stats struct {
	Active        int           `json:"active"`
	Queued        int           `json:"queued"`
	Processed     int64         `json:"processed"`
	Succeeded     int64         `json:"succeeded"`
	Failed        int64         `json:"failed"`
	AverageTiming time.Duration `json:"average_timing"`
}
