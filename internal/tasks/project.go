// Package tasks derives a task list from meeting summaries.
package tasks

import (
	"fmt"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// Project returns one task per action item, in job order then item order.
// Jobs without a summary contribute nothing.
func Project(jobs []types.JobDetail) []types.Task {
	tasks := make([]types.Task, 0)
	for _, detail := range jobs {
		if detail.Summary == nil {
			continue
		}
		for i, item := range detail.Summary.ActionItems {
			tasks = append(tasks, types.Task{
				ID:          fmt.Sprintf("%s-task-%d", detail.Job.ID, i),
				Description: item,
				MeetingID:   detail.Job.ID,
				MeetingName: detail.Job.Filename,
				Priority:    types.PriorityMedium,
				Status:      types.TaskPending,
				CreatedAt:   detail.Job.CreatedAt,
			})
		}
	}
	return tasks
}
