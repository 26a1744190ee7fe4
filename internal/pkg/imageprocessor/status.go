package imageprocessor

import (
	"fmt"
	"time"

	"github.com/pixelmint/pixelmint/internal/pkg/cache"
)

// Cache key format for job processing status
const (
	JobStatusKeyFormat          = "job:status:%s"           // Format: job:status:<uuid>
	JobStatusTimestampKeyFormat = "job:status:timestamp:%s" // Format: job:status:timestamp:<uuid>
)

// Status constants for job processing
const (
	STATUS_PENDING    = "pending"    // Job is queued for processing
	STATUS_PROCESSING = "processing" // Job is currently being processed
	STATUS_COMPLETED  = "completed"  // Job processing is complete
	STATUS_FAILED     = "failed"     // Job processing failed
)

// statusTTL keeps finished-job records around long enough for polling
// clients without growing the cache unbounded.
const statusTTL = 24 * time.Hour

// SetJobStatus sets the processing status of a job in the cache
func SetJobStatus(jobID string, status string) error {
	key := fmt.Sprintf(JobStatusKeyFormat, jobID)
	if err := setJobStatusTimestamp(jobID, time.Now()); err != nil {
		return err
	}
	return cache.Set(key, status, statusTTL)
}

func setJobStatusTimestamp(jobID string, timestamp time.Time) error {
	cacheKey := fmt.Sprintf(JobStatusTimestampKeyFormat, jobID)
	return cache.Set(cacheKey, timestamp.Format(time.RFC3339), statusTTL)
}

// GetJobStatus retrieves the processing status of a job from the cache
func GetJobStatus(jobID string) (string, error) {
	key := fmt.Sprintf(JobStatusKeyFormat, jobID)
	return cache.Get(key)
}

// GetJobStatusTimestamp gets the timestamp when the status was set
func GetJobStatusTimestamp(jobID string) (time.Time, error) {
	cacheKey := fmt.Sprintf(JobStatusTimestampKeyFormat, jobID)
	timestampStr, err := cache.Get(cacheKey)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, timestampStr)
}

// IsJobFinished reports whether a job reached a terminal state. Jobs stuck
// in pending or processing for over a minute are treated as failed so
// polling clients do not wait forever.
func IsJobFinished(jobID string) bool {
	status, err := GetJobStatus(jobID)
	if err != nil {
		return false
	}
	if status == STATUS_COMPLETED || status == STATUS_FAILED {
		return true
	}

	if status == STATUS_PENDING || status == STATUS_PROCESSING {
		timestamp, err := GetJobStatusTimestamp(jobID)
		if err == nil && time.Since(timestamp) > 60*time.Second {
			SetJobStatus(jobID, STATUS_FAILED)
			return true
		}
	}
	return false
}
