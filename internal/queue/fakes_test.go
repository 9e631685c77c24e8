package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/archive"
	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]*types.AudioJob
	summaries   map[string]*types.Summary
	messages    []*types.ChatMessage
	saveErr     error
	saveCalls   int
	createErr   error
	statusCalls int
}

func newFakeStore(jobs ...*types.AudioJob) *fakeStore {
	s := &fakeStore{
		jobs:      make(map[string]*types.AudioJob),
		summaries: make(map[string]*types.Summary),
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeStore) CreateJob(ctx context.Context, job *types.AudioJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) ResetJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != types.StatusError {
		return storage.ErrNotFound
	}
	j.Status = types.StatusProcessing
	j.Transcript = ""
	j.Error = ""
	return nil
}

func (s *fakeStore) SetJobTranscript(ctx context.Context, id, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	j.Transcript = transcript
	return nil
}

func (s *fakeStore) SaveSummary(ctx context.Context, sum *types.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.summaries[sum.AudioJobID] = sum
	return nil
}

func (s *fakeStore) CompleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Transcript == "" {
		return storage.ErrNotFound
	}
	j.Status = types.StatusCompleted
	return nil
}

func (s *fakeStore) UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	j, ok := s.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	j.Status = status
	j.Error = errMsg
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (*types.AudioJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) AppendChatMessage(ctx context.Context, msg *types.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeStore) job(id string) types.AudioJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type fakeTranscriber struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (*types.Transcript, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType, filename string) (*types.Transcript, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call)
}

type fakeSummarizer struct {
	calls int
	fn    func(call int) (*types.SummaryContent, error)
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) (*types.SummaryContent, error) {
	f.calls++
	return f.fn(f.calls)
}

type fakeUsage struct {
	mu    sync.Mutex
	count map[string]int
}

func (f *fakeUsage) Increment(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == nil {
		f.count = make(map[string]int)
	}
	f.count[userID]++
	return f.count[userID], nil
}

func (f *fakeUsage) get(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count[userID]
}

type fakeAudio struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []string
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{files: make(map[string][]byte)}
}

func (f *fakeAudio) StageAudio(jobID, filename string, r io.Reader, limit int64) (string, int64, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", 0, err
	}
	if int64(len(data)) > limit {
		return "", 0, storage.ErrTooLarge
	}
	path := "temp/" + jobID + "_" + filename
	f.mu.Lock()
	f.files[path] = data
	f.mu.Unlock()
	return path, int64(len(data)), nil
}

func (f *fakeAudio) ReadAudio(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *fakeAudio) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

func (f *fakeAudio) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	f.removed = append(f.removed, path)
	return nil
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeArchiver) Archive(ctx context.Context, job *types.AudioJob, summary *types.SummaryContent) (archive.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return archive.Result{LocalPath: "outputs/" + job.ID + ".docx"}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }
