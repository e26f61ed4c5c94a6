package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIngestionJob(t *testing.T) {
	now := time.Now().UTC()
	job := NewIngestionJob("job-1", "doc-1", "group-1", "coll-1", "prov-1", now)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "doc-1", job.DocumentID)
	assert.Equal(t, IngestionJobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, int32(0), job.RetryCount)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestValidateIngestionJob(t *testing.T) {
	now := time.Now().UTC()

	valid := func() *IngestionJob {
		return NewIngestionJob("job-1", "doc-1", "group-1", "", "prov-1", now)
	}

	tests := []struct {
		name    string
		mutate  func(j *IngestionJob)
		wantErr string
	}{
		{
			name:   "valid pending job",
			mutate: func(j *IngestionJob) {},
		},
		{
			name:    "missing id",
			mutate:  func(j *IngestionJob) { j.ID = "" },
			wantErr: "ID is required",
		},
		{
			name:    "missing document id",
			mutate:  func(j *IngestionJob) { j.DocumentID = "" },
			wantErr: "DocumentID is required",
		},
		{
			name:    "missing group id",
			mutate:  func(j *IngestionJob) { j.GroupID = "" },
			wantErr: "GroupID is required",
		},
		{
			name:    "invalid status",
			mutate:  func(j *IngestionJob) { j.Status = "stalled" },
			wantErr: "Status is invalid",
		},
		{
			name:    "progress out of range",
			mutate:  func(j *IngestionJob) { j.Progress = 120 },
			wantErr: "Progress must be within 0-100",
		},
		{
			name:    "retry count above budget",
			mutate:  func(j *IngestionJob) { j.RetryCount = DefaultMaxRetries + 1 },
			wantErr: "RetryCount exceeds MaxRetries",
		},
		{
			name: "processing without started_at",
			mutate: func(j *IngestionJob) {
				j.Status = IngestionJobStatusProcessing
			},
			wantErr: "must have StartedAt",
		},
		{
			name: "completed without completed_at",
			mutate: func(j *IngestionJob) {
				j.Status = IngestionJobStatusCompleted
			},
			wantErr: "must have CompletedAt",
		},
		{
			name: "valid processing job",
			mutate: func(j *IngestionJob) {
				j.Status = IngestionJobStatusProcessing
				j.StartedAt = &now
			},
		},
		{
			name: "valid failed job",
			mutate: func(j *IngestionJob) {
				j.Status = IngestionJobStatusFailed
				j.StartedAt = &now
				j.CompletedAt = &now
				j.Error = "provider returned FAILED"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := valid()
			tt.mutate(job)

			err := ValidateIngestionJob(job)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestIngestionJob_Terminal(t *testing.T) {
	now := time.Now().UTC()
	job := NewIngestionJob("job-1", "doc-1", "group-1", "", "", now)

	assert.False(t, job.Terminal())

	job.Status = IngestionJobStatusProcessing
	assert.False(t, job.Terminal())

	job.Status = IngestionJobStatusCompleted
	assert.True(t, job.Terminal())

	job.Status = IngestionJobStatusFailed
	assert.True(t, job.Terminal())
}

func TestIngestionJob_CanRetry(t *testing.T) {
	now := time.Now().UTC()
	job := NewIngestionJob("job-1", "doc-1", "group-1", "", "", now)

	// Only failed jobs are retryable.
	assert.False(t, job.CanRetry())

	job.Status = IngestionJobStatusFailed
	assert.True(t, job.CanRetry())

	job.RetryCount = job.MaxRetries
	assert.False(t, job.CanRetry())
}
