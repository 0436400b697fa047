// internal/functions/skills/get-tags/models.go
package gettags

// SkillRequest is the batch posted by the search indexer.
type SkillRequest struct {
	Values []SkillRecord `json:"values"`
}

type SkillRecord struct {
	RecordID string                 `json:"recordId"`
	Data     map[string]interface{} `json:"data"`
}

type SkillResponse struct {
	Values []SkillResponseRecord `json:"values"`
}

type SkillResponseRecord struct {
	RecordID string                 `json:"recordId"`
	Data     map[string]interface{} `json:"data"`
	Errors   []SkillMessage         `json:"errors,omitempty"`
	Warnings []SkillMessage         `json:"warnings,omitempty"`
}

type SkillMessage struct {
	Message string `json:"message"`
}

// TagOutput is the enrichment written into a successful record.
type TagOutput struct {
	TagCount   int
	CaseNumber string
}

// RecordResult is the outcome of one record: exactly one of Output and Err is set.
type RecordResult struct {
	RecordID string
	Output   *TagOutput
	Err      error
}
