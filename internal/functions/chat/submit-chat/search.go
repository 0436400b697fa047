// internal/functions/chat/submit-chat/search.go
package submitchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"legal-rag-functions/internal/common/database"
)

// ESSearcher queries the chunk index with a simple_query_string over the question.
type ESSearcher struct {
	client      *database.ElasticsearchClient
	index       string
	top         int
	selectField string
}

func NewESSearcher(client *database.ElasticsearchClient, cfg *Config) *ESSearcher {
	index := cfg.Index
	if index == "" {
		index = client.Index
	}
	return &ESSearcher{
		client:      client,
		index:       index,
		top:         cfg.Top,
		selectField: cfg.SelectField,
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ESSearcher) buildQuery(query string) map[string]interface{} {
	return map[string]interface{}{
		"size":    s.top,
		"_source": []string{s.selectField},
		"query": map[string]interface{}{
			"simple_query_string": map[string]interface{}{
				"query":            query,
				"default_operator": "or",
			},
		},
	}
}

// Search implements Searcher. Ranking is left entirely to the index.
func (s *ESSearcher) Search(ctx context.Context, query string) (ChunkIterator, error) {
	body, err := json.Marshal(s.buildQuery(query))
	if err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	es := s.client.Client
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(s.index),
		es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	sources := make([]map[string]interface{}, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		sources = append(sources, hit.Source)
	}
	return &sourceIterator{sources: sources, field: s.selectField}, nil
}

// sourceIterator extracts the projected field from each hit as it is consumed.
type sourceIterator struct {
	sources []map[string]interface{}
	field   string
	pos     int
}

func (it *sourceIterator) Next() (string, bool) {
	if it.pos >= len(it.sources) {
		return "", false
	}
	src := it.sources[it.pos]
	it.pos++

	switch v := src[it.field].(type) {
	case string:
		return v, true
	case nil:
		return "", true
	default:
		return fmt.Sprint(v), true
	}
}

// SliceIterator iterates a fixed list of chunks.
type SliceIterator struct {
	chunks []string
	pos    int
}

func NewSliceIterator(chunks ...string) *SliceIterator {
	return &SliceIterator{chunks: chunks}
}

func (it *SliceIterator) Next() (string, bool) {
	if it.pos >= len(it.chunks) {
		return "", false
	}
	chunk := it.chunks[it.pos]
	it.pos++
	return chunk, true
}

// NonBlank drops empty and whitespace-only chunks from it.
func NonBlank(it ChunkIterator) ChunkIterator {
	return &nonBlankIterator{inner: it}
}

type nonBlankIterator struct {
	inner ChunkIterator
}

func (it *nonBlankIterator) Next() (string, bool) {
	for {
		chunk, ok := it.inner.Next()
		if !ok {
			return "", false
		}
		if strings.TrimSpace(chunk) != "" {
			return chunk, true
		}
	}
}
