package model

import "time"

// DefaultProjectTitle is used for the auto-created catch-all project.
const DefaultProjectTitle = "My Library"

// Project owns a set of sources and their artifacts. Deleting a project
// cascades to everything it owns.
type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ProjectSummary is a Project with aggregate counts for listings.
type ProjectSummary struct {
	Project
	SourceCount int `json:"source_count"`
}

// NewProject creates a new Project.
func NewProject(id, title, description string) Project {
	now := time.Now().UTC().Format(time.RFC3339)
	return Project{
		ID:          id,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
