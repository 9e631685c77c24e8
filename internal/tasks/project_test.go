package tasks

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

func TestProject(t *testing.T) {
	created := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	jobs := []types.JobDetail{
		{
			Job: types.AudioJob{ID: "j1", Filename: "standup.mp3", CreatedAt: created},
			Summary: &types.Summary{SummaryContent: types.SummaryContent{
				ActionItems: []string{"Send deck", "Book room"},
			}},
		},
		{Job: types.AudioJob{ID: "j2", Filename: "pending.mp3"}},
		{
			Job:     types.AudioJob{ID: "j3", Filename: "retro.wav", CreatedAt: created},
			Summary: &types.Summary{SummaryContent: types.SummaryContent{ActionItems: []string{}}},
		},
	}

	want := []types.Task{
		{ID: "j1-task-0", Description: "Send deck", MeetingID: "j1", MeetingName: "standup.mp3", Priority: types.PriorityMedium, Status: types.TaskPending, CreatedAt: created},
		{ID: "j1-task-1", Description: "Book room", MeetingID: "j1", MeetingName: "standup.mp3", Priority: types.PriorityMedium, Status: types.TaskPending, CreatedAt: created},
	}

	if diff := cmp.Diff(want, Project(jobs)); diff != "" {
		t.Fatalf("Project() mismatch (-want +got):\n%s", diff)
	}
}

// TestProjectDeterministic checks repeated projection yields identical ids.
func TestProjectDeterministic(t *testing.T) {
	jobs := []types.JobDetail{{
		Job:     types.AudioJob{ID: "j1"},
		Summary: &types.Summary{SummaryContent: types.SummaryContent{ActionItems: []string{"a", "b", "c"}}},
	}}
	if diff := cmp.Diff(Project(jobs), Project(jobs)); diff != "" {
		t.Fatalf("projection not stable:\n%s", diff)
	}
}

func TestProjectEmpty(t *testing.T) {
	if got := Project(nil); got == nil || len(got) != 0 {
		t.Fatalf("Project(nil) = %#v, want empty non-nil", got)
	}
}
