package models

// Project is a named, ordered grouping of issues.
type Project struct {
	Name   string  `json:"name"`
	Issues []Issue `json:"issues"`
}

type ProjectSummary struct {
	Name       string `json:"name"`
	IssueCount int    `json:"issue_count"`
	OpenCount  int    `json:"open_count"`
}
