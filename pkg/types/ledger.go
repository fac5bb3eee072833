// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ManifestEntry summarizes one downloaded paper in manifest.json.
type ManifestEntry struct {
	// ID is the paper's primary key ("doi:10.1145/...").
	ID string `json:"id"`

	// Keys lists every known identifier so reruns dedupe on any of them.
	Keys []string `json:"keys,omitempty"`

	Title string `json:"title"`

	// Author is the comma-joined author list.
	Author string `json:"author"`

	Year *int `json:"year,omitempty"`

	// Path is the directory holding paper.pdf and metadata.json.
	Path string `json:"path"`
}

// UnavailableEntry is the leaf record of unavailable.json.
type UnavailableEntry struct {
	Title   string         `json:"title"`
	Authors []string       `json:"authors"`
	Year    *int           `json:"year,omitempty"`
	Reason  WithheldReason `json:"reason"`
}
