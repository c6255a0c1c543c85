package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/config"
	"example.com/mci/services/delivery/internal/fieldmap"
	"example.com/mci/services/delivery/internal/model"
)

// ElasticClient indexes completed deliveries so history stays searchable
// after records age out of the dashboard view
type ElasticClient struct {
	client  *elasticsearch.Client
	index   string
	enabled bool
	log     *logrus.Logger
}

// NewElasticClient creates a new Elasticsearch client. When the integration
// is disabled it returns a no-op client so callers need no nil checks.
func NewElasticClient(cfg *config.ElasticsearchConfig, log *logrus.Logger) (*ElasticClient, error) {
	if !cfg.Enabled {
		return &ElasticClient{enabled: false, log: log}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.URLs,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &ElasticClient{
		client:  client,
		index:   cfg.Index,
		enabled: true,
		log:     log,
	}, nil
}

// IndexDelivery indexes a completed delivery
func (c *ElasticClient) IndexDelivery(ctx context.Context, delivery *model.Delivery) error {
	if !c.enabled {
		return nil
	}

	c.log.WithFields(logrus.Fields{
		"delivery_id": delivery.ID,
		"dr_number":   delivery.DRNumber,
	}).Info("Indexing completed delivery")

	doc := fieldmap.DeliveryDocument(delivery)
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: strconv.FormatUint(uint64(delivery.ID), 10),
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to execute index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return fmt.Errorf("failed to parse Elasticsearch error response: %w", err)
		}
		return fmt.Errorf("elasticsearch index error: %v", e)
	}

	return nil
}

// SearchHistory runs a full-text query over indexed deliveries and returns
// the matching documents
func (c *ElasticClient) SearchHistory(ctx context.Context, term string, size int) ([]map[string]interface{}, error) {
	if !c.enabled {
		return nil, fmt.Errorf("history search is not enabled")
	}
	if size <= 0 {
		size = 50
	}

	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  term,
				"fields": []string{"drNumber", "customerName", "origin", "destination", "truckPlateNumber"},
			},
		},
		"sort": []map[string]interface{}{
			{"completedAt": map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
		},
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to parse Elasticsearch error response: %w", err)
		}
		return nil, fmt.Errorf("elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected search result format")
	}
	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		docs = append(docs, source)
	}

	return docs, nil
}
