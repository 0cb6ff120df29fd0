// Package models holds the persistence-facing records exchanged between
// the application services and the storage adapters.
package models

import (
	"confmeta/domain/classic"
	"confmeta/domain/confset"
	"confmeta/domain/core"
	"confmeta/domain/hmean"
	"confmeta/domain/study"
)

// AnalysisRecord is one stored confidence-set analysis: the inputs, the
// harmonic-mean confidence set and the classical comparison summary.
type AnalysisRecord struct {
	ID        core.AnalysisID  `json:"id"`
	Label     string           `json:"label,omitempty"`
	Studies   study.StudySet   `json:"studies"`
	Level     float64          `json:"level"`
	Options   hmean.Options    `json:"options"`
	Result    *confset.Result  `json:"result"`
	Classic   *classic.Summary `json:"classic,omitempty"`
	CreatedAt core.Timestamp   `json:"created_at"`
}
