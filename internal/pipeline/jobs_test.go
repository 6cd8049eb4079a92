package pipeline

import (
	"errors"
	"testing"
	"time"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob_StartsQueued(t *testing.T) {
	data := []byte("transcript bytes")
	job := NewJob("job-1", "transcript.pdf", data)

	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if job.Phase != "queued" {
		t.Errorf("expected phase %q, got %q", "queued", job.Phase)
	}
	if job.Filename != "transcript.pdf" {
		t.Errorf("expected filename %q, got %q", "transcript.pdf", job.Filename)
	}
	if job.ContentHash != ContentHashHex(data) {
		t.Errorf("expected content hash of upload, got %q", job.ContentHash)
	}
	if string(job.FileData()) != string(data) {
		t.Errorf("expected file data %q, got %q", data, job.FileData())
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("test-1", "t.pdf", nil)

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusCleaning, "cleaning"},
		{StatusExtracting, "extracting"},
		{StatusTabulating, "tabulating"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_FailRecordsErrorAndStatus(t *testing.T) {
	job := NewJob("fail-1", "t.pdf", nil)
	job.Fail("parsing", errors.New("unsupported format"))

	if job.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Status)
	}
	if job.Phase != "parsing" {
		t.Errorf("expected phase %q, got %q", "parsing", job.Phase)
	}
	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "unsupported format" {
		t.Errorf("expected recorded error, got %v", snap.Progress.Errors)
	}
}

func TestJob_AddError(t *testing.T) {
	job := NewJob("err-test", "t.pdf", nil)
	job.AddError("chunk 3 failed")
	job.AddError("csv: conversion failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "chunk 3 failed" {
		t.Errorf("expected first error %q, got %q", "chunk 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_SetLegendRecordsOutcome(t *testing.T) {
	job := NewJob("legend-test", "t.pdf", nil)
	job.SetLegend("A = Excellent\nB = Good", 1, 4)

	snap := job.Snapshot()
	if snap.Progress.Chunks != 4 {
		t.Errorf("expected 4 chunks, got %d", snap.Progress.Chunks)
	}
	if snap.Progress.PromptVariant != 1 {
		t.Errorf("expected prompt variant 1, got %d", snap.Progress.PromptVariant)
	}
	if !snap.Progress.LegendFound {
		t.Error("expected legend_found true")
	}
	if snap.Progress.LegendChars != len("A = Excellent\nB = Good") {
		t.Errorf("expected legend chars %d, got %d", len("A = Excellent\nB = Good"), snap.Progress.LegendChars)
	}
	if job.LegendText() != "A = Excellent\nB = Good" {
		t.Errorf("unexpected legend text %q", job.LegendText())
	}
}

func TestJob_SetLegendEmptyOutcome(t *testing.T) {
	job := NewJob("legend-miss", "t.pdf", nil)
	job.SetLegend("", 0, 7)

	snap := job.Snapshot()
	if snap.Progress.LegendFound {
		t.Error("expected legend_found false for variant 0")
	}
	if snap.Progress.LegendChars != 0 {
		t.Errorf("expected 0 legend chars, got %d", snap.Progress.LegendChars)
	}
	if snap.Progress.Chunks != 7 {
		t.Errorf("expected chunk count recorded even without a legend, got %d", snap.Progress.Chunks)
	}
}

func TestJob_SetCSV(t *testing.T) {
	job := NewJob("csv-test", "t.pdf", nil)
	job.SetCSV("A,Excellent\nB,Good", 2)

	snap := job.Snapshot()
	if snap.Progress.CSVRows != 2 {
		t.Errorf("expected 2 csv rows, got %d", snap.Progress.CSVRows)
	}
	if job.CSVText() != "A,Excellent\nB,Good" {
		t.Errorf("unexpected csv text %q", job.CSVText())
	}
}

func TestJob_ReleaseFileData(t *testing.T) {
	job := NewJob("release-test", "t.pdf", []byte("bytes"))
	job.ReleaseFileData()
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}
	// Hash computed at creation survives the release.
	if job.ContentHash == "" {
		t.Error("expected content hash to survive release")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := NewJob("snap-test", "t.pdf", nil)
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob("store-1", "t.pdf", nil)
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_Delete(t *testing.T) {
	store := NewJobStore(time.Hour)
	store.Put(NewJob("del-1", "t.pdf", nil))

	if !store.Delete("del-1") {
		t.Error("expected delete of existing job to report true")
	}
	if store.Get("del-1") != nil {
		t.Error("expected job to be gone after delete")
	}
	if store.Delete("del-1") {
		t.Error("expected delete of missing job to report false")
	}
}

func TestJobStore_ListNewestFirst(t *testing.T) {
	store := NewJobStore(time.Hour)
	for _, id := range []string{"first", "second", "third"} {
		store.Put(NewJob(id, "t.pdf", nil))
		time.Sleep(time.Millisecond)
	}

	snaps := store.List()
	if len(snaps) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(snaps))
	}
	if snaps[0].ID != "third" || snaps[2].ID != "first" {
		t.Errorf("expected newest first, got %q, %q, %q", snaps[0].ID, snaps[1].ID, snaps[2].ID)
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	store.Put(NewJob("old", "t.pdf", nil))

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	store.Put(NewJob("new", "t.pdf", nil))

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
