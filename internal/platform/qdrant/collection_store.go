package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dbdict-backend/internal/platform/ctxutil"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

const (
	payloadVectorIDKey = "_dd_vector_id"
	payloadDocumentKey = "_dd_document"
	maxErrorBodyBytes  = 1024
	maxResponseBytes   = 32 << 20
	collectionSep      = "__"
	embedBatchSize     = 64
	scrollPageSize     = 256
)

var pointIDNamespaceUUID = uuid.MustParse("6f0d3a52-8d7e-4b43-9a9e-2f4c1c7b52a1")

// Embedder turns text into vectors. The OpenAI client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Document is one chunk to index.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Match is one similarity hit with the stored chunk text and metadata.
type Match struct {
	ID       string
	Text     string
	Metadata map[string]any
	Score    float64
}

// CollectionStore keeps one qdrant collection per documented database.
type CollectionStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	embedder Embedder
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewCollectionStore(log *logger.Logger, cfg Config, embedder Embedder) (*CollectionStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if err := ValidateConfig(cfg, true); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &CollectionStore{
		log:      log.With("service", "QdrantCollectionStore"),
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		embedder: embedder,
		http:     &http.Client{Timeout: timeout},
	}
	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info(
		"Qdrant collection store selected",
		"url", s.baseURL,
		"collection_prefix", cfg.CollectionPrefix,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

// CollectionName maps a database name to its collection.
func (s *CollectionStore) CollectionName(dbName string) (string, error) {
	db := strings.TrimSpace(dbName)
	if db == "" || !collectionPartPattern.MatchString(db) {
		return "", opErr("collection_name", OperationErrorValidation, fmt.Sprintf("invalid database name %q", dbName), nil)
	}
	return s.cfg.CollectionPrefix + collectionSep + db, nil
}

// Databases lists every database with a non-empty collection.
func (s *CollectionStore) Databases(ctx context.Context) ([]string, error) {
	const op = "list_collections"
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.doJSON(ctx, op, http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}

	prefix := s.cfg.CollectionPrefix + collectionSep
	out := make([]string, 0, len(result.Collections))
	for _, c := range result.Collections {
		if !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		db := strings.TrimPrefix(c.Name, prefix)
		if db == "" {
			continue
		}
		n, err := s.Count(ctx, db)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if n > 0 {
			out = append(out, db)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Count returns the number of indexed chunks for a database. A missing
// collection is reported as an OperationErrorNotFound.
func (s *CollectionStore) Count(ctx context.Context, dbName string) (int, error) {
	const op = "count"
	name, err := s.CollectionName(dbName)
	if err != nil {
		return 0, err
	}
	var result struct {
		Count int `json:"count"`
	}
	req := map[string]any{"exact": true}
	if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(name, "/points/count"), req, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Replace drops the database's collection and rebuilds it from docs. Readers
// may see a not-found window while the new generation is written.
func (s *CollectionStore) Replace(ctx context.Context, dbName string, docs []Document) error {
	const op = "replace"
	name, err := s.CollectionName(dbName)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return opErr(op, OperationErrorValidation, "document id is required", nil)
		}
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := s.embedAll(ctx, op, texts)
	if err != nil {
		return err
	}

	if err := s.doJSON(ctx, op, http.MethodDelete, collectionPath(name, ""), nil, nil); err != nil && !IsNotFound(err) {
		return err
	}
	create := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, collectionPath(name, ""), create, nil); err != nil {
		return err
	}
	if err := s.doJSON(ctx, op, http.MethodPut, collectionPath(name, "/index"), map[string]any{
		"field_name":   "table",
		"field_schema": "keyword",
	}, nil); err != nil {
		s.log.Warn("qdrant payload index creation failed (continuing)", "collection", name, "error", err)
	}

	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		points := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			d := docs[i]
			payload := clonePayload(d.Metadata)
			payload[payloadVectorIDKey] = d.ID
			payload[payloadDocumentKey] = d.Text
			points = append(points, map[string]any{
				"id":      pointID(name, d.ID),
				"vector":  vectors[i],
				"payload": payload,
			})
		}
		if err := s.doJSON(ctx, op, http.MethodPut, collectionPath(name, "/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
			return err
		}
	}

	s.log.Info("qdrant collection replaced", "collection", name, "documents", len(docs))
	return nil
}

// Query embeds text and returns the topK closest chunks, best first.
func (s *CollectionStore) Query(ctx context.Context, dbName, text string, topK int, filter *Filter) ([]Match, error) {
	const op = "query"
	name, err := s.CollectionName(dbName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, opErr(op, OperationErrorValidation, "query text required", nil)
	}
	if topK <= 0 {
		topK = 5
	}
	vectors, err := s.embedAll(ctx, op, []string{text})
	if err != nil {
		return nil, err
	}

	req := map[string]any{
		"vector":       vectors[0],
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := filter.asMap(); f != nil {
		req["filter"] = f
	}
	var raw []qdrantPoint
	if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(name, "/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(raw))
	for _, p := range raw {
		m := toMatch(p)
		if m.ID == "" {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// TableNames reads the distinct "table" metadata values of a database's
// table chunks.
func (s *CollectionStore) TableNames(ctx context.Context, dbName string) ([]string, error) {
	const op = "scroll_tables"
	name, err := s.CollectionName(dbName)
	if err != nil {
		return nil, err
	}
	filter := &Filter{Equals: map[string]string{"chunk_type": "table"}}

	seen := map[string]struct{}{}
	var offset json.RawMessage
	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": []string{"table"},
			"with_vector":  false,
			"filter":       filter.asMap(),
		}
		if len(offset) > 0 {
			req["offset"] = offset
		}
		var page struct {
			Points         []qdrantPoint   `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		}
		if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(name, "/points/scroll"), req, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Points {
			if t, ok := p.Payload["table"].(string); ok && strings.TrimSpace(t) != "" {
				seen[strings.TrimSpace(t)] = struct{}{}
			}
		}
		next := strings.TrimSpace(string(page.NextPageOffset))
		if next == "" || next == "null" || len(page.Points) == 0 {
			break
		}
		offset = page.NextPageOffset
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (s *CollectionStore) embedAll(ctx context.Context, op string, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vecs, err := s.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, opErr(op, OperationErrorEmbedFailed, "embed failed", err)
		}
		if len(vecs) != end-start {
			return nil, opErr(op, OperationErrorEmbedFailed, fmt.Sprintf("embedder returned %d vectors for %d inputs", len(vecs), end-start), nil)
		}
		for i, v := range vecs {
			if s.cfg.VectorDim > 0 && len(v) != s.cfg.VectorDim {
				return nil, opErr(
					op,
					OperationErrorValidation,
					fmt.Sprintf("vector %d dimension mismatch: expected=%d got=%d", start+i, s.cfg.VectorDim, len(v)),
					nil,
				)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *CollectionStore) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	readyReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}
	return nil
}

func (s *CollectionStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &OperationError{
			Code:       OperationErrorNotFound,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant resource not found: %s", path),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func toMatch(p qdrantPoint) Match {
	m := Match{Score: p.Score, Metadata: map[string]any{}}
	for k, v := range p.Payload {
		switch k {
		case payloadVectorIDKey:
			m.ID, _ = v.(string)
		case payloadDocumentKey:
			m.Text, _ = v.(string)
		default:
			m.Metadata[k] = v
		}
	}
	if m.ID == "" {
		m.ID = decodePointID(p.ID)
	}
	return m
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pointID(collection, vectorID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(collection+"|"+vectorID)).String()
}

func collectionPath(name, suffix string) string {
	path := "/collections/" + name
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}
