package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/mstgnz/gomerchant/infra/logger"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	indexPrefix     = "gomerchant-"
	systemLogsIndex = indexPrefix + "system-logs"
)

// Client wraps the OpenSearch client
type Client struct {
	client  *opensearch.Client
	enabled bool
}

// NewClient creates a new OpenSearch client and makes sure the transaction
// index of every gateway in gatewayNames exists
func NewClient(cfg *config.AppConfig, gatewayNames []string) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Environment != "production",
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client:  client,
		enabled: cfg.EnableOpenSearch,
	}

	if osClient.enabled {
		osClient.setupIndices(gatewayNames)
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// setupIndices creates the transaction index of each gateway when missing
func (c *Client) setupIndices(gatewayNames []string) {
	for _, name := range gatewayNames {
		indexName := TransactionIndexName(name)

		exists, err := c.indexExists(indexName)
		if err != nil {
			logger.Warn("Failed to check OpenSearch index", logger.LogContext{Gateway: name, Fields: map[string]any{"index": indexName, "error": err.Error()}})
			continue
		}
		if exists {
			continue
		}

		if err := c.createIndex(indexName, transactionMapping); err != nil {
			logger.Warn("Failed to create OpenSearch index", logger.LogContext{Gateway: name, Fields: map[string]any{"index": indexName, "error": err.Error()}})
			continue
		}
		logger.Info("Created OpenSearch index", logger.LogContext{Gateway: name, Fields: map[string]any{"index": indexName}})
	}
}

// indexExists checks if an index exists
func (c *Client) indexExists(indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

const transactionMapping = `{
	"mappings": {
		"properties": {
			"id": {"type": "keyword"},
			"account": {"type": "keyword"},
			"gateway": {"type": "keyword"},
			"environment": {"type": "keyword"},
			"operation": {"type": "keyword"},
			"amount": {"type": "long"},
			"currency": {"type": "keyword"},
			"orderId": {"type": "keyword"},
			"authorization": {"type": "keyword"},
			"clientIp": {"type": "keyword"},
			"card": {"type": "object"},
			"success": {"type": "boolean"},
			"test": {"type": "boolean"},
			"message": {"type": "text"},
			"errorCode": {"type": "keyword"},
			"error": {"type": "text"},
			"processingMs": {"type": "long"},
			"createdAt": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
			"completedAt": {"type": "date", "format": "strict_date_optional_time||epoch_millis"}
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	}
}`

// createIndex creates indexName with the given mapping
func (c *Client) createIndex(indexName, mapping string) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(context.Background(), c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}

	return nil
}

// TransactionIndexName returns the index holding a gateway's transactions
func TransactionIndexName(gatewayName string) string {
	return indexPrefix + strings.ToLower(gatewayName) + "-transactions"
}

// Ping checks that the cluster answers
func (c *Client) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch ping error: %s", res.String())
	}
	return nil
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.enabled
}
