package questionnaire

import (
	"log/slog"

	"sra/api/internal/logger"
)

// Lookup returns the resolved answer for a question id.
type Lookup func(id int) (Value, bool)

// Rule decides whether a conditional question is applicable.
type Rule func(Lookup) bool

// AnsweredTrue applies when the boolean question id resolves true.
func AnsweredTrue(id int) Rule {
	return func(l Lookup) bool {
		v, ok := l(id)
		return ok && v.IsTrue()
	}
}

// Includes applies when the multiselect question id has option selected.
func Includes(id int, option string) Rule {
	return func(l Lookup) bool {
		v, ok := l(id)
		return ok && v.Contains(option)
	}
}

// Merge resolves current answers first, then previous ones.
func Merge(current, previous Answers) Lookup {
	return func(id int) (Value, bool) {
		if v, ok := current[id]; ok {
			return v, true
		}
		v, ok := previous[id]
		return v, ok
	}
}

// Resolution is the ordered applicable question set.
type Resolution struct {
	Questions  []Question `json:"questions"`
	TotalPages int        `json:"totalPages"`
}

// Resolve computes the applicable questions for the merged answer state.
func (c *Catalog) Resolve(current, previous Answers) Resolution {
	lookup := Merge(current, previous)

	gate := c.Gate()
	if !AnsweredTrue(gate.ID)(lookup) {
		return Resolution{Questions: []Question{gate}, TotalPages: 1}
	}

	res := Resolution{Questions: make([]Question, 0, len(c.questions)), TotalPages: 1}
	for _, q := range c.questions {
		if rule, ok := c.rules[q.ID]; ok && !rule(lookup) {
			continue
		}
		res.Questions = append(res.Questions, q)
		if q.Page > res.TotalPages {
			res.TotalPages = q.Page
		}
	}
	return res
}

// Page returns the applicable questions on page n.
func (r Resolution) Page(n int) []Question {
	out := make([]Question, 0)
	for _, q := range r.Questions {
		if q.Page == n {
			out = append(out, q)
		}
	}
	return out
}

// ClampPage keeps active when it still exists, otherwise returns 1.
func (r Resolution) ClampPage(active int) int {
	if active < 1 || active > r.TotalPages {
		return 1
	}
	return active
}

func (r Resolution) Contains(id int) bool {
	for _, q := range r.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

func (r Resolution) IDs() []int {
	ids := make([]int, len(r.Questions))
	for i, q := range r.Questions {
		ids[i] = q.ID
	}
	return ids
}

// Answered filters the applicable questions down to those with an answer.
func (r Resolution) Answered(answers Answers) []Question {
	out := make([]Question, 0, len(r.Questions))
	for _, q := range r.Questions {
		if _, ok := answers[q.ID]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Load decodes persisted records. Records that match no question are dropped;
// for duplicates the last record wins.
func (c *Catalog) Load(records []Record) Answers {
	answers := make(Answers, len(records))
	for _, r := range records {
		q, ok := c.ByText(r.Question)
		if !ok {
			slog.Warn("questionnaire: ignoring unmatched answer", "question", logger.Truncate(r.Question, 80))
			continue
		}
		answers[q.ID] = Decode(q, r)
	}
	return answers
}

// Ordered returns the records matching catalog questions in catalog order,
// keyed by question id.
func (c *Catalog) Ordered(records []Record) ([]Record, map[int]Record) {
	byID := make(map[int]Record, len(records))
	for _, r := range records {
		if q, ok := c.ByText(r.Question); ok {
			byID[q.ID] = r
		}
	}
	out := make([]Record, 0, len(byID))
	for _, q := range c.questions {
		if r, ok := byID[q.ID]; ok {
			out = append(out, r)
		}
	}
	return out, byID
}
