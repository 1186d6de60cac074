package questionnaire

import (
	"errors"
	"fmt"
	"strings"
)

type Type string

const (
	TypeBoolean     Type = "boolean"
	TypeText        Type = "text"
	TypeSelect      Type = "select"
	TypeMultiSelect Type = "multiselect"
)

// Question ids referenced by visibility rules and the codec.
const (
	QuestionCollectsPersonalInfo = 1
	QuestionSensitiveData        = 3
	QuestionSensitiveCategories  = 4
	QuestionContinents           = 8
	QuestionGDPR                 = 9
	QuestionStorageLocation      = 12
	QuestionTransfersAbroad      = 14
	QuestionTransferCountries    = 15
	QuestionSharesWithVendors    = 20
	QuestionVendorPurpose        = 21
	QuestionRetentionDuration    = 30
)

const (
	OtherPrefix       = "Other: "
	OtherOption       = "Other"
	OtherSpecify      = "Other (specify)"
	ProviderSeparator = " - Provider: "
	DurationSeparator = " - Duration: "
)

// Detail describes a select question whose sentinel option carries free text.
type Detail struct {
	Sentinel  string
	Separator string
}

// Question is immutable once the catalog is built. Options must not be modified.
type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Type    Type     `json:"type"`
	Options []string `json:"options,omitempty"`
	Page    int      `json:"page"`
	Detail  *Detail  `json:"-"`
	// FixedOptions turns off the "Other: " side channel for a multiselect.
	FixedOptions bool `json:"-"`
}

// Catalog is the ordered, read-only question set plus its visibility rules.
type Catalog struct {
	questions []Question
	byID      map[int]int
	byText    map[string]int
	gate      int
	rules     map[int]Rule
}

var ErrInvalidCatalog = errors.New("invalid catalog")

// New validates and builds a catalog. gate must name a boolean question; every
// rule key must name a question.
func New(questions []Question, gate int, rules map[int]Rule) (*Catalog, error) {
	c := &Catalog{
		questions: make([]Question, len(questions)),
		byID:      make(map[int]int, len(questions)),
		byText:    make(map[string]int, len(questions)),
		gate:      gate,
		rules:     make(map[int]Rule, len(rules)),
	}
	copy(c.questions, questions)

	for i, q := range c.questions {
		if q.Page < 1 {
			return nil, fmt.Errorf("%w: question %d has page %d", ErrInvalidCatalog, q.ID, q.Page)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %d", ErrInvalidCatalog, q.ID)
		}
		if _, dup := c.byText[q.Text]; dup {
			return nil, fmt.Errorf("%w: duplicate question text %q", ErrInvalidCatalog, q.Text)
		}
		c.byID[q.ID] = i
		c.byText[q.Text] = i
	}

	g, ok := c.ByID(gate)
	if !ok || g.Type != TypeBoolean {
		return nil, fmt.Errorf("%w: gate %d must be a boolean question", ErrInvalidCatalog, gate)
	}
	for id, rule := range rules {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("%w: rule for unknown question %d", ErrInvalidCatalog, id)
		}
		c.rules[id] = rule
	}
	return c, nil
}

func (c *Catalog) Questions() []Question {
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

func (c *Catalog) ByID(id int) (Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

func (c *Catalog) ByText(text string) (Question, bool) {
	i, ok := c.byText[text]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

func (c *Catalog) Gate() Question {
	q, _ := c.ByID(c.gate)
	return q
}

// MatchText binds free text to a question: an exact text match first, then the
// longest question text contained in s. Thread texts are stored as
// "<question>: <message>", so a contained match is the legacy binding.
func (c *Catalog) MatchText(s string) (Question, bool) {
	if q, ok := c.ByText(s); ok {
		return q, true
	}
	best := -1
	for i, q := range c.questions {
		if !strings.Contains(s, q.Text) {
			continue
		}
		if best < 0 || len(q.Text) > len(c.questions[best].Text) {
			best = i
		}
	}
	if best < 0 {
		return Question{}, false
	}
	return c.questions[best], true
}

var defaultCatalog = mustBuild()

// Default returns the process-wide screening catalog.
func Default() *Catalog {
	return defaultCatalog
}

func mustBuild() *Catalog {
	c, err := New(screeningQuestions(), QuestionCollectsPersonalInfo, map[int]Rule{
		QuestionSensitiveCategories: AnsweredTrue(QuestionSensitiveData),
		QuestionGDPR:                Includes(QuestionContinents, "Europe"),
		QuestionTransferCountries:   AnsweredTrue(QuestionTransfersAbroad),
		QuestionVendorPurpose:       AnsweredTrue(QuestionSharesWithVendors),
	})
	if err != nil {
		panic(err)
	}
	return c
}

func screeningQuestions() []Question {
	return []Question{
		{ID: 1, Text: "Does the system collect any Personal information from individuals?", Type: TypeBoolean, Page: 1},
		{ID: 2, Text: "Provide a detailed description of the system, including its purpose, functionality, and how it processes personal data.", Type: TypeText, Page: 1},
		{ID: 3, Text: "Will you collect or process any sensitive or special categories of personal data?", Type: TypeBoolean, Page: 1},
		{ID: 4, Text: "If yes, which sensitive data categories apply? Please select all applicable categories.", Type: TypeMultiSelect, Options: sensitiveDataTypes, Page: 1},
		{ID: 5, Text: "What categories of non-sensitive personal data will be collected and/or processed by the system? Please select all applicable categories.", Type: TypeMultiSelect, Options: nonSensitiveDataTypes, Page: 1},
		{ID: 6, Text: "From which groups of data subjects will personal data be collected and/or processed? Please select all applicable groups.", Type: TypeMultiSelect, Options: dataSubjectGroups, Page: 1},
		{ID: 7, Text: "For what purposes will personal data be collected and/or processed by the system?", Type: TypeMultiSelect, Options: dataCollectionPurposes, Page: 1},
		{ID: 8, Text: "From which continents are you collecting personal data?", Type: TypeMultiSelect, Options: continents, Page: 2, FixedOptions: true},
		{ID: 9, Text: "Will the system comply with the General Data Protection Regulation (GDPR) requirements for processing personal data from European data subjects?", Type: TypeBoolean, Page: 2},
		{ID: 10, Text: "What is the estimated volume or scale of personal data that will be collected and/or processed by the system?", Type: TypeSelect, Options: dataProcessingScale, Page: 2},
		{ID: 11, Text: "Please list the upstream systems or sources providing personal data.", Type: TypeSelect, Options: systemsOfRecord, Page: 3},
		{ID: 12, Text: "Where will the data be stored?", Type: TypeSelect, Options: dataStorageLocations, Page: 3, Detail: &Detail{Sentinel: OtherOption, Separator: ProviderSeparator}},
		{ID: 13, Text: "Please list the downstream systems or recipients of data.", Type: TypeSelect, Options: systemsOfRecord, Page: 3},
		{ID: 14, Text: "Will personal data be transferred outside the country of collection?", Type: TypeBoolean, Page: 3},
		{ID: 15, Text: "If yes, to which countries will personal data be transferred?", Type: TypeMultiSelect, Options: countries, Page: 3},
		{ID: 16, Text: "Are group companies, affiliates, or external partners involved in the data transfer?", Type: TypeBoolean, Page: 3},
		{ID: 17, Text: "Which authentication or security measures will you implement to protect personal data?", Type: TypeMultiSelect, Options: securityMeasures, Page: 4},
		{ID: 18, Text: "How often are user access rights reviewed?", Type: TypeSelect, Options: accessReviewFrequencies, Page: 4},
		{ID: 20, Text: "Will you send personal data to any third-party vendors or processors?", Type: TypeBoolean, Page: 4},
		{ID: 21, Text: "For what purposes will you share data with vendors or third parties?", Type: TypeText, Page: 4},
		{ID: 22, Text: "Is there monitoring or CCTV involved in the project?", Type: TypeBoolean, Page: 5},
		{ID: 23, Text: "Are you ensuring that no data subject rights are being violated?", Type: TypeBoolean, Page: 5},
		{ID: 24, Text: "Is large-scale processing of personal data involved?", Type: TypeBoolean, Page: 5},
		{ID: 25, Text: "Is any data on criminal convictions or offenses being collected?", Type: TypeBoolean, Page: 5},
		{ID: 26, Text: "Are you combining datasets from multiple sources?", Type: TypeBoolean, Page: 5},
		{ID: 27, Text: "Are innovative technologies (e.g., AI, IoT) used in the project?", Type: TypeBoolean, Page: 5},
		{ID: 28, Text: "Is personal data regularly shared with government or law enforcement bodies?", Type: TypeBoolean, Page: 5},
		{ID: 29, Text: "Will there be profiling, automated decision-making, or analytics performed on the data?", Type: TypeBoolean, Page: 5},
		{ID: 30, Text: "How long do you intend to retain the personal data?", Type: TypeSelect, Options: dataRetentionDurations, Page: 5, Detail: &Detail{Sentinel: OtherSpecify, Separator: DurationSeparator}},
		{ID: 31, Text: "Is there a process for reviewing and deleting outdated personal data?", Type: TypeBoolean, Page: 5},
	}
}
