// Package memory defines the contract to the long-term memory index ("RAG")
// collaborator that ingests facts surfaced during conversation.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Indexer ingests one memory text and returns identifiers of the indexed
// items. The collaborator owns retrieval; this side only appends.
type Indexer interface {
	AddMemory(ctx context.Context, profileID string, lovedOneID int64, text, memoryID string) ([]string, error)
}

type addMemoryRequest struct {
	ProfileID  string `json:"profile_id"`
	LovedOneID int64  `json:"loved_one_id"`
	Text       string `json:"text"`
	MemoryID   string `json:"memory_id"`
}

type addMemoryResponse struct {
	IndexedIDs []string `json:"indexed_ids"`
}

type httpIndexer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP returns an Indexer backed by a JSON-over-HTTP memory index service.
func NewHTTP(endpoint, apiKey string, timeout time.Duration) Indexer {
	return &httpIndexer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (x *httpIndexer) AddMemory(ctx context.Context, profileID string, lovedOneID int64, text, memoryID string) ([]string, error) {
	payload, err := json.Marshal(addMemoryRequest{
		ProfileID:  profileID,
		LovedOneID: lovedOneID,
		Text:       text,
		MemoryID:   memoryID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal add_memory request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("add_memory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("add_memory failed: %s", resp.Status)
	}

	var decoded addMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode add_memory response: %w", err)
	}
	return decoded.IndexedIDs, nil
}

type noopIndexer struct{}

// NewNoop returns an Indexer that accepts every memory and indexes nothing.
// Used when memory indexing is disabled.
func NewNoop() Indexer {
	return noopIndexer{}
}

func (noopIndexer) AddMemory(context.Context, string, int64, string, string) ([]string, error) {
	return nil, nil
}
