package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
)

type WrapperStruct struct {
	LogType   string      `json:"LOGTYPE"`
	Timestamp time.Time   `json:"@timestamp"`
	Data      interface{} `json:"data"`
}

// SendWrappedLog bulk-indexes one wrapped document into index. A nil client is a no-op.
func SendWrappedLog(ctx context.Context, client *elasticsearch.Client, index string, logType string, rawData interface{}) error {
	if client == nil {
		return nil
	}

	body, err := json.Marshal(WrapperStruct{
		LogType:   logType,
		Timestamp: time.Now(),
		Data:      rawData,
	})
	if err != nil {
		return fmt.Errorf("marshal log document: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"index":{"_index":%q}}`, index)
	buf.WriteByte('\n')
	buf.Write(body)
	buf.WriteByte('\n')

	req := esapi.BulkRequest{Body: &buf}
	res, err := req.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("send bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request rejected: %s", res.String())
	}

	// item-level failures are reported inside a 200 response
	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				Error  json.RawMessage `json:"error,omitempty"`
				Status int             `json:"status"`
			} `json:"index"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		Warnf("[SendWrappedLog] decode bulk response: %v", err)
		return nil
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			if item.Index.Error != nil {
				return fmt.Errorf("bulk item failed (status=%d): %s", item.Index.Status, string(item.Index.Error))
			}
		}
	}
	return nil
}
