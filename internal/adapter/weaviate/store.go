package weaviate

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"tubethought/internal/retrieval"
	"tubethought/internal/vector"
	"tubethought/internal/worker"
)

const maxTranscriptChunks = 10000

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreChunk(ctx context.Context, chunk worker.Chunk) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassName).
		WithProperties(map[string]interface{}{
			"content":    chunk.Content,
			"videoId":    chunk.VideoID,
			"chunkIndex": chunk.ChunkIndex,
			"language":   chunk.Language,
		}).
		WithVector(chunk.Vector).
		Do(ctx)
	return err
}

func (s *Store) DeleteChunks(ctx context.Context, videoID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(videoFilter(videoID)).
		Do(ctx)
	return err
}

// Lookup collects search candidates with both score halves filled in. A
// semantic query and a lexical query run against the same corpus and
// their results merge by chunk; candidates come back in chunk order.
// Vector scores use cosine certainty (already 0..1); BM25 scores are
// normalized by the best score in the result set.
func (s *Store) Lookup(ctx context.Context, videoID, query string, queryVector []float32, limit int) ([]retrieval.Fragment, error) {
	type candidate struct {
		content      string
		chunkIndex   int
		vectorScore  float64
		keywordScore float64
	}
	merged := make(map[int]*candidate)

	if queryVector != nil {
		hits, err := s.semanticQuery(ctx, videoID, queryVector, limit)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			merged[h.chunkIndex] = &candidate{
				content:     h.content,
				chunkIndex:  h.chunkIndex,
				vectorScore: h.score,
			}
		}
	}

	lexical, err := s.lexicalQuery(ctx, videoID, query, limit)
	if err != nil {
		return nil, err
	}
	var maxScore float64
	for _, h := range lexical {
		if h.score > maxScore {
			maxScore = h.score
		}
	}
	for _, h := range lexical {
		normalized := 0.0
		if maxScore > 0 {
			normalized = h.score / maxScore
		}
		if c, ok := merged[h.chunkIndex]; ok {
			c.keywordScore = normalized
		} else {
			merged[h.chunkIndex] = &candidate{
				content:      h.content,
				chunkIndex:   h.chunkIndex,
				keywordScore: normalized,
			}
		}
	}

	ordered := make([]*candidate, 0, len(merged))
	for _, c := range merged {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].chunkIndex < ordered[j].chunkIndex })

	fragments := make([]retrieval.Fragment, 0, len(ordered))
	for _, c := range ordered {
		fragments = append(fragments, retrieval.Fragment{
			Content:      c.content,
			VectorScore:  c.vectorScore,
			KeywordScore: c.keywordScore,
		})
	}
	return fragments, nil
}

type hit struct {
	content    string
	chunkIndex int
	score      float64
}

func (s *Store) semanticQuery(ctx context.Context, videoID string, queryVector []float32, limit int) ([]hit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(videoFilter(videoID)).
		WithLimit(limit).
		WithFields(hitFields("certainty")...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}
	return parseHits(res.Data, "certainty"), nil
}

func (s *Store) lexicalQuery(ctx context.Context, videoID, query string, limit int) ([]hit, error) {
	bm25 := s.client.GraphQL().Bm25ArgBuilder().
		WithQuery(query).
		WithProperties("content")

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithBM25(bm25).
		WithWhere(videoFilter(videoID)).
		WithLimit(limit).
		WithFields(hitFields("score")...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}
	return parseHits(res.Data, "score"), nil
}

// FullTranscript returns every chunk of a video in chunk order.
func (s *Store) FullTranscript(ctx context.Context, videoID string) ([]string, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "chunkIndex"},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(videoFilter(videoID)).
		WithLimit(maxTranscriptChunks).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	type indexed struct {
		content string
		index   int
	}
	var chunks []indexed
	for _, props := range rawObjects(res.Data) {
		c := indexed{}
		if content, ok := props["content"].(string); ok {
			c.content = content
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			c.index = int(idx)
		}
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })

	contents := make([]string, 0, len(chunks))
	for _, c := range chunks {
		contents = append(contents, c.content)
	}
	return contents, nil
}

func videoFilter(videoID string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"videoId"}).
		WithOperator(filters.Equal).
		WithValueString(videoID)
}

func hitFields(scoreField string) []graphql.Field {
	return []graphql.Field{
		{Name: "content"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: scoreField}}},
	}
}

func parseHits(data map[string]models.JSONObject, scoreField string) []hit {
	var hits []hit
	for _, props := range rawObjects(data) {
		h := hit{}
		if content, ok := props["content"].(string); ok {
			h.content = content
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			h.chunkIndex = int(idx)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			switch v := additional[scoreField].(type) {
			case float64:
				h.score = v
			case string:
				// BM25 scores arrive as strings.
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					h.score = parsed
				}
			}
		}
		hits = append(hits, h)
	}
	return hits
}

func rawObjects(data map[string]models.JSONObject) []map[string]interface{} {
	var objects []map[string]interface{}
	if get, ok := data["Get"].(map[string]interface{}); ok {
		if raw, ok := get[vector.ClassName].([]interface{}); ok {
			for _, obj := range raw {
				if props, ok := obj.(map[string]interface{}); ok {
					objects = append(objects, props)
				}
			}
		}
	}
	return objects
}
