package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/logger"
	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

func testJob() *types.AudioJob {
	return &types.AudioJob{
		ID:         "j1",
		Filename:   "weekly sync.mp3",
		Duration:   "12:04",
		Transcript: "Alice: ship on Friday.\nBob: agreed.",
		CreatedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func testSummary() *types.SummaryContent {
	return &types.SummaryContent{
		MainSummary:  "Release planning.",
		BulletPoints: []string{"Ship Friday"},
		ActionItems:  []string{"Alice to tag the release"},
	}
}

// documentXML pulls word/document.xml out of the rendered package.
func documentXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip package: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return string(b)
	}
	t.Fatal("word/document.xml missing")
	return ""
}

func TestRenderDocxBytes(t *testing.T) {
	data, err := RenderDocxBytes(testJob(), testSummary())
	if err != nil {
		t.Fatalf("RenderDocxBytes: %v", err)
	}

	xml := documentXML(t, data)
	for _, want := range []string{"weekly sync.mp3", "Release planning.", "Alice to tag the release", "Bob: agreed."} {
		if !strings.Contains(xml, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestExportName(t *testing.T) {
	if got := ExportName(testJob()); got != "weekly sync.docx" {
		t.Fatalf("ExportName() = %q", got)
	}
	if got := ExportName(&types.AudioJob{ID: "j9"}); got != "j9.docx" {
		t.Fatalf("ExportName() = %q", got)
	}
}

type fakeLocal struct{ saved map[string][]byte }

func (f *fakeLocal) SaveExport(name string, data []byte) (string, error) {
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[name] = data
	return "/out/" + name, nil
}

type fakeDrive struct {
	failures int
	calls    int
}

func (f *fakeDrive) Upload(context.Context, string, string, []byte) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("drive unavailable")
	}
	return "https://drive.google.com/file/d/abc/view", nil
}

func TestArchiveRetriesDrive(t *testing.T) {
	local := &fakeLocal{}
	drive := &fakeDrive{failures: 2}
	a := NewArchiver(local, drive, logger.Discard())
	var slept []time.Duration
	a.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	res, err := a.Archive(context.Background(), testJob(), testSummary())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.DriveURL == "" || drive.calls != 3 {
		t.Fatalf("res = %+v calls = %d", res, drive.calls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 4*time.Second {
		t.Fatalf("backoff = %v", slept)
	}
	if _, ok := local.saved["weekly sync.docx"]; !ok {
		t.Fatal("local copy not saved")
	}
}

func TestArchiveDriveFailureKeepsLocal(t *testing.T) {
	a := NewArchiver(&fakeLocal{}, &fakeDrive{failures: 10}, logger.Discard())
	a.sleep = func(context.Context, time.Duration) error { return nil }

	res, err := a.Archive(context.Background(), testJob(), nil)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.LocalPath == "" || res.DriveURL != "" {
		t.Fatalf("res = %+v", res)
	}
}

func TestArchiveStopsBackoffOnCancel(t *testing.T) {
	drive := &fakeDrive{failures: 10}
	a := NewArchiver(&fakeLocal{}, drive, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res, err := a.Archive(ctx, testJob(), testSummary())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Archive waited %v after cancellation", elapsed)
	}
	if drive.calls != 1 || res.LocalPath == "" || res.DriveURL != "" {
		t.Fatalf("calls = %d res = %+v", drive.calls, res)
	}
}
