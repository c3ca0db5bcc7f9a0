// Package search keeps a medicine catalog index in Elasticsearch for the
// customer storefront.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esutil"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

type Results struct {
	Total int64
	Items []models.Medicine
}

type Index struct {
	ES   *elasticsearch.Client
	Name string
}

func New(es *elasticsearch.Client, name string) *Index {
	return &Index{ES: es, Name: name}
}

func sanitizeQuery(q string) string {
	return strings.TrimSpace(q)
}

// Search runs a fuzzy match over name, generic name and manufacturer. An
// empty query lists the catalog.
func (ix *Index) Search(ctx context.Context, rawQ string, from, size int) (Results, error) {
	q := sanitizeQuery(rawQ)

	var query map[string]any
	if q == "" {
		query = map[string]any{"match_all": map[string]any{}}
	} else {
		query = map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"name^3", "generic_name^2", "manufacturer", "description"},
				"fuzziness": "AUTO",
			},
		}
	}
	body := map[string]any{"query": query, "from": from, "size": size}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Results{}, fmt.Errorf("search: encode: %w", err)
	}

	res, err := ix.ES.Search(
		ix.ES.Search.WithContext(ctx),
		ix.ES.Search.WithIndex(ix.Name),
		ix.ES.Search.WithBody(&buf),
		ix.ES.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Results{}, fmt.Errorf("search: %s: %s", res.Status(), readSnippet(res.Body))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Medicine `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Results{}, fmt.Errorf("search: decode: %w", err)
	}

	items := make([]models.Medicine, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		items[i] = hit.Source
	}
	return Results{Total: r.Hits.Total.Value, Items: items}, nil
}

func (ix *Index) Put(ctx context.Context, m models.Medicine) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("index: encode: %w", err)
	}
	res, err := ix.ES.Index(ix.Name, bytes.NewReader(data),
		ix.ES.Index.WithContext(ctx),
		ix.ES.Index.WithDocumentID(strconv.FormatInt(m.ID, 10)),
	)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index: %s: %s", res.Status(), readSnippet(res.Body))
	}
	return nil
}

func (ix *Index) Delete(ctx context.Context, id int64) error {
	res, err := ix.ES.Delete(ix.Name, strconv.FormatInt(id, 10), ix.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete: %s: %s", res.Status(), readSnippet(res.Body))
	}
	return nil
}

// Source yields the catalog page by page; more is false on the last page.
type Source func(ctx context.Context, page int) (items []models.Medicine, more bool, err error)

// Reindex streams every medicine from src into the index with the bulk API.
func (ix *Index) Reindex(ctx context.Context, src Source) (int, error) {
	l := logging.FromContext(ctx).With("op", "reindex", "index", ix.Name)

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        ix.ES,
		Index:         ix.Name,
		FlushInterval: time.Second,
	})
	if err != nil {
		return 0, fmt.Errorf("reindex: bulk indexer: %w", err)
	}

	var failed int
	count := 0
	for page := 1; ; page++ {
		items, more, err := src(ctx, page)
		if err != nil {
			_ = bi.Close(ctx)
			return count, fmt.Errorf("reindex: page %d: %w", page, err)
		}
		for _, m := range items {
			data, err := json.Marshal(m)
			if err != nil {
				_ = bi.Close(ctx)
				return count, fmt.Errorf("reindex: encode %d: %w", m.ID, err)
			}
			id := m.ID
			err = bi.Add(ctx, esutil.BulkIndexerItem{
				Action:     "index",
				DocumentID: strconv.FormatInt(id, 10),
				Body:       bytes.NewReader(data),
				OnFailure: func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
					failed++
					l.Error("reindex_item_failed", "medicine_id", id, "status", res.Status, "error", err)
				},
			})
			if err != nil {
				_ = bi.Close(ctx)
				return count, fmt.Errorf("reindex: add %d: %w", id, err)
			}
			count++
		}
		if !more {
			break
		}
	}

	if err := bi.Close(ctx); err != nil {
		return count, fmt.Errorf("reindex: flush: %w", err)
	}
	stats := bi.Stats()
	l.Info("reindex_done", "added", stats.NumAdded, "indexed", stats.NumIndexed, "failed", stats.NumFailed)
	if stats.NumFailed > 0 {
		return int(stats.NumIndexed), fmt.Errorf("reindex: %d documents failed", stats.NumFailed)
	}
	return count, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1024))
	return string(b)
}
