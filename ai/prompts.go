// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/quarry/core"
)

const classificationPromptTemplate = `Classify the research query below into exactly one task type.

Task types:
%s
Answer with the task type name only, one of: %s.

Query: %s`

const paraphrasePromptTemplate = `Rewrite the research query below as %d different search queries that approach the
topic from different angles (terminology, method, application). Keep each under 20 words.

Output ONLY valid JSON of the form {"queries": ["...", "..."]}. No other text.

Query: %s`

const validationPromptTemplate = `Rate how relevant the passage is to the query on a scale from 0.0 (unrelated)
to 1.0 (directly answers it).

Answer with the number only.

Query: %s

Passage: %s`

var taskDescriptions = map[core.TaskType]string{
	core.TaskGeneral:           "broad literature survey or open question about a topic",
	core.TaskComparableMethods: "find papers using comparable methods, losses, architectures or datasets",
	core.TaskReproducibility:   "look up experimental setups, hyperparameters or training details",
	core.TaskFormula:           "find a specific equation or formula",
	core.TaskSynthesis:         "combine or compare findings across several papers",
	core.TaskCitation:          "analyze citations, influence or which papers cite or are cited by a paper",
}

// ClassificationPrompt builds the prompt that asks the oracle for one of tasks.
// Without tasks every built-in task type is offered.
func ClassificationPrompt(query string, tasks ...core.TaskType) string {
	if len(tasks) == 0 {
		tasks = core.TaskTypes
	}
	var lines strings.Builder
	labels := make([]string, len(tasks))
	for i, t := range tasks {
		labels[i] = string(t)
		if desc, ok := taskDescriptions[t]; ok {
			fmt.Fprintf(&lines, "- %s: %s\n", t, desc)
		} else {
			fmt.Fprintf(&lines, "- %s\n", t)
		}
	}
	return fmt.Sprintf(classificationPromptTemplate, lines.String(), strings.Join(labels, ", "), query)
}

// ParaphrasePrompt builds the prompt that asks the oracle for n paraphrases of query.
func ParaphrasePrompt(query string, n int) string {
	return fmt.Sprintf(paraphrasePromptTemplate, n, query)
}

// ValidationPrompt builds the prompt that asks the oracle to score a passage.
func ValidationPrompt(query, passage string) string {
	return fmt.Sprintf(validationPromptTemplate, query, passage)
}

type paraphrases struct {
	Queries []string `json:"queries"`
}

var numberedLine = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*(.+)$`)

// ParseParaphrases reads paraphrased queries from an oracle answer. It accepts the
// requested JSON object, a bare JSON array, or a numbered or bulleted list.
// Blank and duplicate entries are dropped. Returns ErrEmptyResponse when nothing
// usable is found.
func ParseParaphrases(answer string) ([]string, error) {
	var raw []string
	body := ExtractJSON(answer)
	var obj paraphrases
	if err := json.Unmarshal([]byte(body), &obj); err == nil && len(obj.Queries) > 0 {
		raw = obj.Queries
	} else if err := json.Unmarshal([]byte(body), &raw); err != nil {
		raw = nil
		for _, line := range strings.Split(StripCodeFence(answer), "\n") {
			if m := numberedLine.FindStringSubmatch(line); m != nil {
				raw = append(raw, m[1])
			}
		}
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.Trim(strings.TrimSpace(q), `"`)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no paraphrases in answer", ErrEmptyResponse)
	}
	return out, nil
}

var scorePattern = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// ParseScore reads a relevance score in [0, 1] from an oracle answer. Answers of
// yes/true and no/false map to 1 and 0. Scores outside the range are clamped.
func ParseScore(answer string) (float64, error) {
	lower := strings.ToLower(strings.TrimSpace(answer))
	switch {
	case strings.HasPrefix(lower, "yes"), strings.HasPrefix(lower, "true"):
		return 1, nil
	case strings.HasPrefix(lower, "no"), strings.HasPrefix(lower, "false"):
		return 0, nil
	}
	m := scorePattern.FindString(lower)
	if m == "" {
		return 0, fmt.Errorf("%w: no score in %q", ErrEmptyResponse, answer)
	}
	score, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	}
	return min(max(score, 0), 1), nil
}
