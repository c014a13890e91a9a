package searchcore

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/forgehq/search-core/escluster"
)

// DefaultMaxBulkSize bounds a single bulk request payload.
const DefaultMaxBulkSize = 10 << 20 // 10 MiB

// BulkClient is the slice of the cluster client the indexer needs.
// *escluster.Client satisfies it.
type BulkClient interface {
	Bulk(ctx context.Context, req *escluster.BulkRequest) (*escluster.BulkResponse, error)
	Aliases(ctx context.Context, alias string) (*escluster.AliasInfo, error)
}

// IndexerConfig configures a BulkIndexer.
type IndexerConfig struct {
	Client      BulkClient
	MaxBulkSize int // bytes; defaults to DefaultMaxBulkSize
	Logger      Logger
}

// BulkIndexer accumulates document references into size-bounded batches and
// submits them as bulk requests. It is single-owner state: not safe for
// concurrent use. Callers needing concurrency shard work across independent
// indexers and merge the flushed failures themselves.
type BulkIndexer struct {
	client  BulkClient
	log     Logger
	maxSize int

	buf      bytes.Buffer
	pending  []DocumentReference
	failures []DocumentReference

	// alias generations looked up once per logical index per session
	aliases map[string]*escluster.AliasInfo
}

// NewBulkIndexer creates an indexer with an empty buffer.
func NewBulkIndexer(cfg IndexerConfig) (*BulkIndexer, error) {
	if cfg.Client == nil {
		return nil, errors.New("bulk client is required")
	}
	if cfg.MaxBulkSize == 0 {
		cfg.MaxBulkSize = DefaultMaxBulkSize
	}
	if cfg.MaxBulkSize < 0 {
		return nil, errors.Errorf("invalid max bulk size %d", cfg.MaxBulkSize)
	}

	return &BulkIndexer{
		client:  cfg.Client,
		log:     safeLogger(cfg.Logger),
		maxSize: cfg.MaxBulkSize,
		aliases: make(map[string]*escluster.AliasInfo),
	}, nil
}

// Process buffers one reference, flushing the prior batch first when the
// byte budget would overflow. Index and upsert operations additionally
// enqueue deletes against stale index generations behind the same alias,
// so documents do not linger in read replicas left over from a reindex.
func (bi *BulkIndexer) Process(ctx context.Context, ref DocumentReference) error {
	switch ref.Op {
	case OpIndex, OpUpsert:
		payload, err := ref.encode(ref.IndexName)
		if errors.Is(err, ErrShouldBeDeleted) {
			return bi.Process(ctx, ref.AsDelete())
		}
		if err != nil {
			return err
		}

		bi.append(ctx, ref, payload)
		bi.cleanupStaleGenerations(ctx, ref)
		return nil

	case OpDelete:
		payload, err := ref.encode(ref.IndexName)
		if err != nil {
			return err
		}

		bi.append(ctx, ref, payload)
		return nil

	default:
		return errors.Wrapf(ErrUnsupportedOperation, "operation %d for document %s", ref.Op, ref.ID)
	}
}

// Flush submits any buffered operations, then returns and clears the
// failure list accumulated over this session. Safe to call with nothing
// buffered.
func (bi *BulkIndexer) Flush(ctx context.Context) []DocumentReference {
	bi.send(ctx)

	failed := bi.failures
	bi.failures = nil
	return failed
}

// append adds an encoded operation to the buffer, sending the current
// batch first if the new payload would push it past the size limit. An
// oversized single payload still goes out alone.
func (bi *BulkIndexer) append(ctx context.Context, ref DocumentReference, payload []byte) {
	if bi.buf.Len() > 0 && bi.buf.Len()+len(payload) > bi.maxSize {
		bi.send(ctx)
	}

	bi.buf.Write(payload)
	bi.pending = append(bi.pending, ref)
}

// cleanupStaleGenerations enqueues delete operations against every index
// generation behind ref's alias except the current write target.
func (bi *BulkIndexer) cleanupStaleGenerations(ctx context.Context, ref DocumentReference) {
	info := bi.aliasInfo(ctx, ref.IndexName)
	if info == nil {
		return
	}

	for _, idx := range info.Indices {
		if idx.IsWriteIndex || idx.Name == ref.IndexName {
			continue
		}

		del := ref.AsDelete()
		payload, err := del.encode(idx.Name)
		if err != nil {
			bi.log.DebugWithCtx(ctx, "failed to encode stale-generation delete",
				"index", idx.Name, "id", ref.ID, "error", err)
			continue
		}
		bi.append(ctx, del, payload)
	}
}

func (bi *BulkIndexer) aliasInfo(ctx context.Context, alias string) *escluster.AliasInfo {
	if info, ok := bi.aliases[alias]; ok {
		return info
	}

	info, err := bi.client.Aliases(ctx, alias)
	if err != nil {
		bi.log.DebugWithCtx(ctx, "alias lookup failed", "alias", alias, "error", err)
		info = &escluster.AliasInfo{Alias: alias}
	}

	bi.aliases[alias] = info
	return info
}

// send submits the buffered batch and closes its accounting: per-item
// failures (or all items, on transport error) are recorded, then buffer
// and pending list are reset. Errors are logged, never returned, so one
// bad batch does not abort the session.
func (bi *BulkIndexer) send(ctx context.Context) {
	if bi.buf.Len() == 0 {
		return
	}

	body := make([]byte, bi.buf.Len())
	copy(body, bi.buf.Bytes())
	batch := bi.pending

	bi.buf.Reset()
	bi.pending = nil

	resp, err := bi.client.Bulk(ctx, &escluster.BulkRequest{Body: bytes.NewReader(body)})
	if err != nil {
		// No partial-success assumption on transport failure: everything
		// in the batch is treated as failed.
		bi.log.DebugWithCtx(ctx, "bulk request failed", "items", len(batch), "error", err)
		bi.failures = append(bi.failures, batch...)
		return
	}

	for i, item := range resp.Items {
		if i >= len(batch) {
			break
		}

		result, ok := item[batch[i].Op.String()]
		if !ok || result.Error != nil || result.Status >= 300 {
			bi.log.DebugWithCtx(ctx, "bulk item failed",
				"index", batch[i].IndexName, "id", batch[i].ID, "op", batch[i].Op.String(),
				"result", result.Result, "status", result.Status)
			bi.failures = append(bi.failures, batch[i])
		}
	}

	// A short response leaves trailing operations unaccounted for. They
	// cannot be assumed successful.
	if len(resp.Items) < len(batch) {
		bi.log.DebugWithCtx(ctx, "bulk response shorter than batch",
			"items", len(resp.Items), "batch", len(batch))
		bi.failures = append(bi.failures, batch[len(resp.Items):]...)
	}
}
