// Package brd holds the parsed Business Requirements Document structure
// produced by the upstream parsing stage. The retriever consumes it to
// derive targeted search queries.
package brd

import (
	"encoding/json"
	"fmt"
	"os"
)

// DocumentInfo is BRD document metadata.
type DocumentInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Date    string `json:"date,omitempty"`
}

// Objective is a single business objective (e.g. BO-01).
type Objective struct {
	ID        string `json:"id"`
	Objective string `json:"objective"`
	Metric    string `json:"metric_success_criteria,omitempty"`
	Priority  string `json:"priority,omitempty"`
}

// FunctionalRequirement is a single functional requirement (e.g. FR-01).
type FunctionalRequirement struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
	Rationale   string `json:"rationale,omitempty"`
}

// NonFunctionalRequirement is a quality requirement (e.g. NFR-01).
type NonFunctionalRequirement struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Requirements groups all requirement lists.
type Requirements struct {
	Functional    []FunctionalRequirement    `json:"functional"`
	NonFunctional []NonFunctionalRequirement `json:"non_functional"`
}

// Scope lists what is in and out of scope.
type Scope struct {
	InScope    []string `json:"in_scope"`
	OutOfScope []string `json:"out_of_scope"`
}

// ParsedBRD is the fully parsed BRD, the input to retrieval.
type ParsedBRD struct {
	DocumentInfo     DocumentInfo `json:"document_info"`
	ExecutiveSummary string       `json:"executive_summary"`
	Objectives       []Objective  `json:"business_objectives"`
	Scope            Scope        `json:"project_scope"`
	Requirements     Requirements `json:"requirements"`
}

// LoadFile reads and decodes a ParsedBRD from a JSON file.
func LoadFile(path string) (*ParsedBRD, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brd: %w", err)
	}
	var b ParsedBRD
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode brd: %w", err)
	}
	return &b, nil
}

// Title returns the document title, or a placeholder when unset.
func (b *ParsedBRD) Title() string {
	if b.DocumentInfo.Title == "" {
		return "Untitled Project"
	}
	return b.DocumentInfo.Title
}
