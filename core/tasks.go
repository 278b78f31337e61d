package core

import (
	"fmt"
	"strings"
)

// TaskType is the closed set of query intents the engine plans for.
type TaskType string

const (
	// TaskGeneral is general retrieval or a literature survey. It is the fallback.
	TaskGeneral TaskType = "general"
	// TaskComparableMethods finds work using comparable methods.
	TaskComparableMethods TaskType = "comparable_methods"
	// TaskReproducibility looks up the experimental setup needed to reproduce a result.
	TaskReproducibility TaskType = "reproducibility"
	// TaskFormula looks up formulas.
	TaskFormula TaskType = "formula"
	// TaskSynthesis gathers evidence across documents.
	TaskSynthesis TaskType = "synthesis"
	// TaskCitation analyses citation influence.
	TaskCitation TaskType = "citation"
)

// TaskTypes lists the closed set in a stable order.
var TaskTypes = []TaskType{
	TaskGeneral, TaskComparableMethods, TaskReproducibility, TaskFormula, TaskSynthesis, TaskCitation,
}

var taskAliases = map[string]TaskType{
	"general":                     TaskGeneral,
	"general retrieval":           TaskGeneral,
	"literature survey":           TaskGeneral,
	"literature_survey":           TaskGeneral,
	"survey":                      TaskGeneral,
	"comparable_methods":          TaskComparableMethods,
	"comparable methods":          TaskComparableMethods,
	"find comparable methods":     TaskComparableMethods,
	"reproducibility":             TaskReproducibility,
	"reproducibility lookup":      TaskReproducibility,
	"formula":                     TaskFormula,
	"formula lookup":              TaskFormula,
	"synthesis":                   TaskSynthesis,
	"cross-document synthesis":    TaskSynthesis,
	"cross_document_synthesis":    TaskSynthesis,
	"citation":                    TaskCitation,
	"citation analysis":           TaskCitation,
	"citation/influence analysis": TaskCitation,
	"influence analysis":          TaskCitation,
}

// ParseTaskType maps a label onto the closed set. Matching ignores case,
// surrounding whitespace, quotes and a trailing period. Unknown labels return
// ErrUnrecognizedTaskType.
func ParseTaskType(label string) (TaskType, error) {
	norm := strings.ToLower(strings.TrimSpace(label))
	norm = strings.Trim(norm, "\"'`")
	norm = strings.TrimSuffix(norm, ".")
	norm = strings.TrimSpace(norm)
	if task, ok := taskAliases[norm]; ok {
		return task, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedTaskType, label)
}

// Valid reports whether t is a member of the closed set.
func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t TaskType) String() string {
	return string(t)
}
