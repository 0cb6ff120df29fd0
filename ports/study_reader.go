package ports

import (
	"confmeta/domain/study"
)

// StudyReader loads a study set from an external source (spreadsheet, CSV).
type StudyReader interface {
	ReadStudySet() (study.StudySet, error)
}
