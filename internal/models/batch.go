package models

import "time"

// ProgressSnapshot is the point-in-time view of a running batch exposed
// on the control surface.
type ProgressSnapshot struct {
	RunID          string `json:"run_id,omitempty"`
	TaskName       string `json:"task,omitempty"`
	Processed      int    `json:"processed"`
	Total          int    `json:"total"`
	Running        bool   `json:"running"`
	CurrentCompany string `json:"current_company,omitempty"`
}

// BatchRun is the persisted summary of one orchestration run.
type BatchRun struct {
	ID         string     `json:"id"`
	TaskName   string     `json:"task"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	ReportPath string     `json:"report_path"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
