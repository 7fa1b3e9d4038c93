package models

import "math"

// TaskSummary backs the overview panel.
type TaskSummary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Progress   int `json:"progress"`
}

func Summarize(tasks []Task) TaskSummary {
	var summary TaskSummary
	summary.Total = len(tasks)
	for _, task := range tasks {
		switch task.Status {
		case StatusCompleted:
			summary.Completed++
		case StatusInProgress:
			summary.InProgress++
		default:
			summary.Pending++
		}
	}
	if summary.Total > 0 {
		summary.Progress = int(math.Round(float64(summary.Completed) * 100 / float64(summary.Total)))
	}
	return summary
}
