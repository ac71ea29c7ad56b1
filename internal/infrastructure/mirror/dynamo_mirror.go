package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/example/candleworks-fulfillment/internal/domain/stock"
	"github.com/example/candleworks-fulfillment/internal/events"
)

// DynamoMirror keeps a best-effort copy of the stock counters in DynamoDB for
// external consumers (storefront availability badges, ops dashboards). It is
// a mirror, never a source of truth: writes that fail are logged and dropped.
type DynamoMirror struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// mirrorItem is the DynamoDB item layout.
type mirrorItem struct {
	StockKey    string `dynamodbav:"stock_key"`
	ProductSlug string `dynamodbav:"product_slug"`
	VariantID   string `dynamodbav:"variant_id,omitempty"`
	Quantity    int    `dynamodbav:"quantity"`
	UpdatedAt   string `dynamodbav:"updated_at"`
}

func NewDynamoMirror(client *dynamodb.Client, tableName string, logger *zap.Logger) *DynamoMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoMirror{client: client, tableName: tableName, logger: logger}
}

// HandleEvent consumes stock events from Kafka and mirrors the resulting
// quantity. Non-stock events are ignored.
func (m *DynamoMirror) HandleEvent(ctx context.Context, key, value []byte) error {
	var evt events.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		m.logger.Error("failed to unmarshal event", zap.Error(err))
		return err
	}
	if evt.Type != events.TypeStockAdjusted && evt.Type != events.TypeStockSet {
		return nil
	}

	var adj stock.StockAdjusted
	if err := json.Unmarshal(evt.Data, &adj); err != nil {
		m.logger.Error("failed to unmarshal stock event", zap.Error(err))
		return err
	}

	if err := m.put(ctx, adj); err != nil {
		// Best-effort: the authoritative counter already moved.
		m.logger.Warn("stock mirror write failed",
			zap.String("stock_key", evt.Key),
			zap.Error(err))
	}
	return nil
}

func (m *DynamoMirror) put(ctx context.Context, adj stock.StockAdjusted) error {
	skey := stock.Key{ProductSlug: adj.ProductSlug, VariantID: adj.VariantID}
	item := mirrorItem{
		StockKey:    skey.String(),
		ProductSlug: adj.ProductSlug,
		VariantID:   adj.VariantID,
		Quantity:    adj.Quantity,
		UpdatedAt:   time.Now().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal mirror item: %w", err)
	}
	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      av,
	})
	return err
}
