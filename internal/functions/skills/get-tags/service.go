// internal/functions/skills/get-tags/service.go
package gettags

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"legal-rag-functions/internal/common/errors"
	"legal-rag-functions/internal/common/metrics"
	"legal-rag-functions/internal/common/observability"
	"legal-rag-functions/internal/common/storage"
)

const (
	CaseNumberTag         = "CaseNumber"
	MissingCaseNumber     = "NA"
	retrieveErrorTemplate = "Error retrieving tags: %s"
)

// Processor enriches skill records with blob tags.
type Processor struct {
	config *Config
	reader storage.TagReader
	obs    *observability.Observability
}

func NewProcessor(config *Config, reader storage.TagReader, obs *observability.Observability) *Processor {
	return &Processor{config: config, reader: reader, obs: obs}
}

// Process returns one response record per input record, in input order.
// Records are independent, so they are fetched concurrently up to MaxConcurrency.
func (p *Processor) Process(ctx context.Context, records []SkillRecord) []RecordResult {
	results := make([]RecordResult, len(records))

	var g errgroup.Group
	limit := p.config.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := range records {
		i := i
		g.Go(func() error {
			results[i] = p.processRecord(ctx, records[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Processor) processRecord(ctx context.Context, record SkillRecord) (result RecordResult) {
	result.RecordID = record.RecordID

	defer func() {
		if r := recover(); r != nil {
			result.Output = nil
			result.Err = fmt.Errorf("record %s: %v", record.RecordID, r)
		}
		p.recordOutcome(ctx, result)
	}()

	uri, ok := record.Data[p.config.SourceField].(string)
	if !ok || strings.TrimSpace(uri) == "" {
		result.Err = errors.NewFieldNotFoundError(p.config.SourceField)
		return result
	}

	if p.config.RecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RecordTimeout)
		defer cancel()
	}

	tags, err := p.reader.GetTags(ctx, uri)
	if err != nil {
		result.Err = err
		return result
	}

	result.Output = buildOutput(tags)
	return result
}

func buildOutput(tags storage.BlobTagSet) *TagOutput {
	caseNumber, ok := tags.Get(CaseNumberTag)
	if !ok {
		caseNumber = MissingCaseNumber
	}
	return &TagOutput{
		TagCount:   tags.Count(),
		CaseNumber: caseNumber,
	}
}

func outcome(result RecordResult) string {
	switch {
	case result.Err == nil:
		return "success"
	case errors.HasCode(result.Err, errors.ErrCodeFieldNotFound):
		return "field_not_found"
	default:
		return "error"
	}
}

func (p *Processor) recordOutcome(ctx context.Context, result RecordResult) {
	o := outcome(result)
	metrics.SkillRecordsProcessed.WithLabelValues(o).Inc()
	p.obs.RecordRecordProcessed(ctx, o)
}

// ToResponseRecord converts a result into the indexer's wire shape. Failed
// records carry one error and empty data.
func (r RecordResult) ToResponseRecord() SkillResponseRecord {
	out := SkillResponseRecord{
		RecordID: r.RecordID,
		Data:     map[string]interface{}{},
	}

	if r.Err != nil {
		out.Errors = []SkillMessage{{Message: recordErrorMessage(r.Err)}}
		return out
	}

	out.Data["tagCount"] = r.Output.TagCount
	out.Data[CaseNumberTag] = r.Output.CaseNumber
	return out
}

func recordErrorMessage(err error) string {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		return fmt.Sprintf(retrieveErrorTemplate, err.Error())
	}
	if stdErr.Code == errors.ErrCodeFieldNotFound {
		return stdErr.Message
	}
	return fmt.Sprintf(retrieveErrorTemplate, stdErr.Message)
}
