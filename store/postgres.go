package store

import (
	"context"
	"fmt"
	"strings"

	"docsearch/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/sirupsen/logrus"
)

// PostgresStore keeps documents and chunks in Postgres with pgvector for
// similarity search. Document-level atomicity comes from wrapping each Put
// in one transaction; the unique key on (source, source_id, content_hash)
// collapses concurrent duplicate ingestions.
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
	log  *logrus.Entry
}

func NewPostgresStore(ctx context.Context, connStr string, dim int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
		dim:  dim,
		log:  logrus.WithField("component", "postgres_store"),
	}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		uploaded_by TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		task_id TEXT NOT NULL DEFAULT '',
		task_title TEXT NOT NULL DEFAULT '',
		conversation_id TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		uploaded_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
		UNIQUE (source, source_id, content_hash)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d),
		page INT NOT NULL DEFAULT 0,
		section TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		UNIQUE (doc_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_task_id ON documents(task_id);
	`, p.dim)

	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *PostgresStore) Put(ctx context.Context, doc types.Document, chunks []types.Chunk) (uuid.UUID, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	var docID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO documents
			(id, filename, source, source_id, content_hash, uploaded_by,
			 content_type, size_bytes, task_id, task_title, conversation_id,
			 metadata, uploaded_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (source, source_id, content_hash) DO UPDATE SET
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		doc.ID, doc.Filename, doc.Source, doc.SourceID, doc.ContentHash,
		doc.UploadedBy, doc.ContentType, doc.SizeBytes, doc.TaskID,
		doc.TaskTitle, doc.ConversationID, doc.Metadata,
		doc.UploadedAt, doc.CreatedAt, doc.UpdatedAt,
	).Scan(&docID)
	if err != nil {
		return uuid.Nil, err
	}

	// Replace the chunk set wholesale: either the new set lands or the
	// transaction rolls back with the old set intact.
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE doc_id = $1`, docID); err != nil {
		return uuid.Nil, err
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks
				(id, doc_id, chunk_index, content, embedding, page, section, metadata, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			c.ID, docID, c.Index, c.Content, pgvector.NewVector(c.Embedding),
			c.Page, c.Section, c.Metadata, c.CreatedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return uuid.Nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}

	p.log.WithFields(logrus.Fields{
		"doc_id": docID, "chunks": len(chunks),
	}).Debug("document stored")
	return docID, nil
}

func (p *PostgresStore) Search(ctx context.Context, vec []float32, topK int, f Filters) ([]SearchHit, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	where, args := filterClause(f, 2)
	args = append([]any{pgvector.NewVector(vec)}, args...)
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT c.id, c.doc_id, c.chunk_index, c.content, c.page, c.section,
		       c.metadata, c.created_at,
		       1 - (c.embedding <=> $1) AS score,
		       d.filename, d.source, d.source_id, d.uploaded_by,
		       d.content_type, d.task_id, d.task_title, d.conversation_id,
		       d.uploaded_at
		FROM chunks c
		JOIN documents d ON c.doc_id = d.id
		WHERE c.embedding IS NOT NULL%s
		ORDER BY c.embedding <=> $1 ASC, d.uploaded_at ASC, c.chunk_index ASC
		LIMIT $%d`, where, len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(
			&h.Chunk.ID, &h.Chunk.DocID, &h.Chunk.Index, &h.Chunk.Content,
			&h.Chunk.Page, &h.Chunk.Section, &h.Chunk.Metadata, &h.Chunk.CreatedAt,
			&h.Score,
			&h.Doc.Filename, &h.Doc.Source, &h.Doc.SourceID, &h.Doc.UploadedBy,
			&h.Doc.ContentType, &h.Doc.TaskID, &h.Doc.TaskTitle,
			&h.Doc.ConversationID, &h.Doc.UploadedAt,
		); err != nil {
			return nil, err
		}
		h.Doc.ID = h.Chunk.DocID
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// filterClause renders the AND-combination of set filter fields, numbering
// placeholders from argOffset.
func filterClause(f Filters, argOffset int) (string, []any) {
	var sb strings.Builder
	var args []any
	add := func(column string, value any) {
		sb.WriteString(fmt.Sprintf(" AND %s = $%d", column, argOffset+len(args)))
		args = append(args, value)
	}
	if f.Source != "" {
		add("d.source", string(f.Source))
	}
	if f.TaskID != "" {
		add("d.task_id", f.TaskID)
	}
	if f.ConversationID != "" {
		add("d.conversation_id", f.ConversationID)
	}
	if f.UploadedBy != "" {
		add("d.uploaded_by", f.UploadedBy)
	}
	return sb.String(), args
}

func (p *PostgresStore) Delete(ctx context.Context, docID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	return err
}

func (p *PostgresStore) GetDocument(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx, docSelect+` WHERE id = $1`, docID)
	doc, err := scanDocument(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

func (p *PostgresStore) FindByKey(ctx context.Context, source types.Source, sourceID, contentHash string) (*types.Document, int, error) {
	row := p.pool.QueryRow(ctx,
		docSelect+` WHERE source = $1 AND source_id = $2 AND content_hash = $3`,
		source, sourceID, contentHash)
	doc, err := scanDocument(row)
	if err == pgx.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var count int
	if err := p.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE doc_id = $1`, doc.ID).Scan(&count); err != nil {
		return nil, 0, err
	}
	return doc, count, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context, source types.Source) ([]types.Document, error) {
	query := docSelect
	var args []any
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

const docSelect = `
	SELECT id, filename, source, source_id, content_hash, uploaded_by,
	       content_type, size_bytes, task_id, task_title, conversation_id,
	       metadata, uploaded_at, created_at, updated_at
	FROM documents`

func scanDocument(row pgx.Row) (*types.Document, error) {
	doc := &types.Document{}
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.Source, &doc.SourceID, &doc.ContentHash,
		&doc.UploadedBy, &doc.ContentType, &doc.SizeBytes, &doc.TaskID,
		&doc.TaskTitle, &doc.ConversationID, &doc.Metadata,
		&doc.UploadedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.log.Info("postgres connection pool closed")
	}
}
