package api

import (
	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/feed"
	"github.com/starford/orgsync/internal/index"
	"github.com/starford/orgsync/internal/metadata"
	"github.com/starford/orgsync/internal/orgservice"
)

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = orgservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = orgservice.DocumentListItem

// HeadlineDetail is a headline with resolved status and category.
type HeadlineDetail = orgservice.HeadlineDetail

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// HeadlineListResponse wraps headline query results.
type HeadlineListResponse struct {
	Headlines []HeadlineDetail `json:"headlines" validate:"required"`
}

// TagListResponse wraps the tag registry.
type TagListResponse struct {
	Tags []metadata.TagInfo `json:"tags" validate:"required"`
}

// CategoryListResponse wraps the category registry.
type CategoryListResponse struct {
	Categories []metadata.CategoryInfo `json:"categories" validate:"required"`
}

// UpdateListResponse wraps change-feed records.
type UpdateListResponse struct {
	Updates []feed.Entry `json:"updates" validate:"required"`
	LastSeq uint64       `json:"last_seq" example:"17"`
}

// FailureListResponse wraps the current per-path failures.
type FailureListResponse struct {
	Failures []feed.PathFailure `json:"failures" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// PathsRequest is the request body for replacing the monitored paths.
type PathsRequest struct {
	Paths []coverage.MonitoredPath `json:"paths" validate:"required"`
}

// PathsResponse lists the monitored paths.
type PathsResponse struct {
	Paths []coverage.MonitoredPath `json:"paths" validate:"required"`
}
