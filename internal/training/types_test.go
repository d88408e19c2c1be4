package training_test

import (
	"errors"
	"testing"

	"github.com/zsprackett/trainwatch/internal/training"
)

func TestDecodeSnapshot(t *testing.T) {
	raw := `{"job_id":"abc123","status":"RUNNING","progress":0.42,"loss":0.8123,"log_message":"epoch 3"}`
	s, err := training.Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	want := training.Snapshot{
		JobID:      "abc123",
		Status:     training.StatusRunning,
		Progress:   0.42,
		Loss:       0.8123,
		LogMessage: "epoch 3",
	}
	if s != want {
		t.Errorf("got %+v want %+v", s, want)
	}
}

func TestDecodeKeepsUnknownStatus(t *testing.T) {
	s, err := training.Decode([]byte(`{"job_id":"x","status":"PAUSED"}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != "PAUSED" {
		t.Errorf("status: got %q want PAUSED", s.Status)
	}
	if s.Status.Known() {
		t.Error("PAUSED should not be a known status")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		notSnap bool
	}{
		{"garbage", `not json`, false},
		{"truncated", `{"job_id":"x",`, false},
		{"wrong type", `{"job_id":"x","status":"RUNNING","progress":"half"}`, false},
		{"server error", `{"error":"Job not found","job_id":"x"}`, true},
		{"no status", `{"job_id":"x","progress":0.5}`, true},
	}
	for _, tc := range cases {
		_, err := training.Decode([]byte(tc.raw))
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if got := errors.Is(err, training.ErrNotSnapshot); got != tc.notSnap {
			t.Errorf("%s: errors.Is(ErrNotSnapshot) = %v want %v (err: %v)", tc.name, got, tc.notSnap, err)
		}
	}
}

func TestShowBarLabel(t *testing.T) {
	cases := []struct {
		progress float64
		want     bool
	}{
		{0, false},
		{0.05, false},
		{0.1, false},
		{0.1000001, true},
		{0.42, true},
		{1, true},
	}
	for _, tc := range cases {
		s := training.Snapshot{Progress: tc.progress}
		if got := s.ShowBarLabel(); got != tc.want {
			t.Errorf("ShowBarLabel(%v): got %v want %v", tc.progress, got, tc.want)
		}
	}
}

func TestQueued(t *testing.T) {
	s := training.Queued("job-1")
	if s.Status != training.StatusQueued || s.Progress != 0 || s.JobID != "job-1" {
		t.Errorf("unexpected queued snapshot: %+v", s)
	}
	if s.Done() {
		t.Error("queued job should not be done")
	}
}
