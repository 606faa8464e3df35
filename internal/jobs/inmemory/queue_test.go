package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pvoronov/homeledger/internal/jobs"
)

func TestQueue_PublishAndConsume(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processed := make(chan string, 1)
	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		processed <- job.GetID()
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ImportStatementJob{
		DocumentID: "doc-1",
		GCSURI:     "gs://statements/doc-1.pdf",
	}
	if err := q.PublishImportStatement(ctx, job); err != nil {
		t.Fatalf("PublishImportStatement failed: %v", err)
	}

	if job.JobID == "" {
		t.Error("expected a generated job ID")
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", job.MaxRetries)
	}

	select {
	case id := <-processed:
		if id != job.JobID {
			t.Errorf("processed job %q, want %q", id, job.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	// Completion status reaches the store asynchronously after the handler
	// returns.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := store.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if stored.Status == jobs.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %q, want completed", stored.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	q := NewQueue(10, NewStore())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ImportStatementJob{
		DocumentID: "doc-1",
		GCSURI:     "gs://statements/doc-1.pdf",
		MaxRetries: 2,
	}
	if err := q.PublishImportStatement(ctx, job); err != nil {
		t.Fatalf("PublishImportStatement failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not retried after a transient failure")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestQueue_PublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	job := &jobs.ImportStatementJob{DocumentID: "doc-1"}
	if err := q.PublishImportStatement(context.Background(), job); err == nil {
		t.Error("expected an error publishing to a closed queue")
	}
}

func TestStore_ListJobsFiltering(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.ImportStatementJob{
		{JobID: "j1", DocumentID: "doc-1", Status: jobs.JobStatusPending},
		{JobID: "j2", DocumentID: "doc-1", Status: jobs.JobStatusCompleted},
		{JobID: "j3", DocumentID: "doc-2", Status: jobs.JobStatusPending},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s) failed: %v", j.JobID, err)
		}
	}

	byDoc, err := store.ListJobs(ctx, jobs.JobFilter{DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(byDoc) != 2 {
		t.Errorf("ListJobs(doc-1) returned %d jobs, want 2", len(byDoc))
	}

	pending, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("ListJobs(pending) returned %d jobs, want 2", len(pending))
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListJobs(limit=1) returned %d jobs, want 1", len(limited))
	}
}

func TestStore_SaveJobCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.ImportStatementJob{JobID: "j1", Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	// Mutating the caller's copy must not affect the stored one.
	job.Status = jobs.JobStatusFailed

	stored, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Status != jobs.JobStatusPending {
		t.Errorf("stored status = %q, want pending", stored.Status)
	}
}
