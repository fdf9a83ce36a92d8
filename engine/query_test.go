package engine

import (
	"context"
	"testing"
	"time"

	"docsearch/model"
	"docsearch/store"
	"docsearch/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	engine   *Engine
	store    *store.MemoryStore
	embedder *model.MockEmbedder
}

func newHarness() *harness {
	emb := model.NewMockEmbedder(64)
	st := store.NewMemoryStore()
	return &harness{engine: New(st, emb), store: st, embedder: emb}
}

// seed stores a document whose chunks are the given texts at contiguous
// indices, embedded with the same mock the engine queries with.
func (h *harness) seed(t *testing.T, doc types.Document, texts ...string) types.Document {
	t.Helper()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	chunks := make([]types.Chunk, len(texts))
	for i, text := range texts {
		vec, err := h.embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		chunks[i] = types.Chunk{
			ID:        uuid.New(),
			DocID:     doc.ID,
			Index:     i,
			Content:   text,
			Embedding: vec,
		}
	}
	_, err := h.store.Put(context.Background(), doc, chunks)
	require.NoError(t, err)
	return doc
}

func plannerDoc(taskID string, uploadedAt time.Time) types.Document {
	return types.Document{
		Filename:    taskID + ".txt",
		Source:      types.SourcePlanner,
		SourceID:    "att-" + taskID,
		ContentHash: "hash-" + taskID,
		TaskID:      taskID,
		UploadedAt:  uploadedAt,
	}
}

func TestQueryRanksRelevantChunkFirst(t *testing.T) {
	h := newHarness()
	h.seed(t, plannerDoc("task-1", time.Now()),
		"the quarterly review covers revenue and headcount",
		"lunch menu for the office cafeteria this week",
	)

	resp, err := h.engine.Query(context.Background(), types.QueryParams{
		Query: "quarterly review revenue",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results[0].Content, "quarterly review")
	assert.Equal(t, "quarterly review revenue", resp.Query)
	assert.Equal(t, len(resp.Results), resp.TotalResults)
}

func TestQueryResultsCarryAttribution(t *testing.T) {
	h := newHarness()
	doc := plannerDoc("task-9", time.Now())
	doc.TaskTitle = "Close the books"
	h.seed(t, doc, "journal entries must be posted before Friday")

	resp, err := h.engine.Query(context.Background(), types.QueryParams{Query: "journal entries"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.Equal(t, doc.ID, r.DocumentID)
	assert.Equal(t, types.SourcePlanner, r.Source)
	assert.Equal(t, "task-9", r.TaskID)
	assert.Equal(t, "Close the books", r.TaskTitle)
	assert.Equal(t, "task-9.txt", r.Filename)
	assert.Equal(t, 0, r.ChunkIndex)
	assert.Greater(t, r.Score, 0.0)
}

func TestQueryFiltersIsolateTasks(t *testing.T) {
	h := newHarness()
	h.seed(t, plannerDoc("task-1", time.Now()), "budget spreadsheet for the first project")
	h.seed(t, plannerDoc("task-2", time.Now()), "budget spreadsheet for the second project")

	resp, err := h.engine.Query(context.Background(), types.QueryParams{
		Query:   "budget spreadsheet",
		Filters: types.QueryFilters{TaskID: "task-1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "task-1", r.TaskID)
	}
}

func TestQueryFiltersByConversation(t *testing.T) {
	h := newHarness()
	chat := types.Document{
		Filename:       "thread.txt",
		Source:         types.SourceTeams,
		SourceID:       "msg-1",
		ContentHash:    "h-chat",
		ConversationID: "conv-42",
		UploadedAt:     time.Now(),
	}
	h.seed(t, chat, "deployment checklist shared in the thread")
	h.seed(t, plannerDoc("task-3", time.Now()), "deployment checklist attached to the task")

	resp, err := h.engine.Query(context.Background(), types.QueryParams{
		Query:   "deployment checklist",
		Filters: types.QueryFilters{Source: types.SourceTeams, ConversationID: "conv-42"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "conv-42", resp.Results[0].ConversationID)
	assert.Equal(t, types.SourceTeams, resp.Results[0].Source)
}

func TestQueryTeamsScenario(t *testing.T) {
	h := newHarness()
	chat := types.Document{
		Filename:       "timeline.txt",
		Source:         types.SourceTeams,
		SourceID:       "msg-7",
		ContentHash:    "h-timeline",
		ConversationID: "conv-42",
		UploadedAt:     time.Now(),
	}
	h.seed(t, chat,
		"project timeline for the first milestone",
		"resourcing notes and open risks",
		"project timeline slip and recovery options",
	)
	h.seed(t, plannerDoc("task-4", time.Now()), "project timeline draft on the board")

	resp, err := h.engine.Query(context.Background(), types.QueryParams{
		Query:   "project timeline",
		Filters: types.QueryFilters{Source: types.SourceTeams},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, types.SourceTeams, r.Source)
		assert.Equal(t, "conv-42", r.ConversationID)
	}
}

func TestQueryEqualScoresBreakTiesOnUploadTime(t *testing.T) {
	h := newHarness()
	early := time.Now().Add(-2 * time.Hour)
	late := time.Now()

	// Identical content embeds to identical vectors, forcing a score tie.
	first := h.seed(t, plannerDoc("task-old", early), "incident postmortem draft")
	second := h.seed(t, plannerDoc("task-new", late), "incident postmortem draft")

	for i := 0; i < 5; i++ {
		resp, err := h.engine.Query(context.Background(), types.QueryParams{Query: "incident postmortem"})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, first.ID, resp.Results[0].DocumentID, "earlier upload must rank first on a tie")
		assert.Equal(t, second.ID, resp.Results[1].DocumentID)
	}
}

func TestQueryDeduplicatesAdjacentChunks(t *testing.T) {
	h := newHarness()
	// Adjacent chunks share the overlap region, so near-identical neighbors
	// stand in for one passage surfacing twice.
	doc := h.seed(t, plannerDoc("task-5", time.Now()),
		"migration plan for the billing database",
		"migration plan for the billing database continued",
		"unrelated note about parking permits",
	)

	resp, err := h.engine.Query(context.Background(), types.QueryParams{
		Query: "migration plan billing database",
		TopK:  10,
	})
	require.NoError(t, err)

	indices := make([]int, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.DocumentID == doc.ID && r.ChunkIndex <= 1 {
			indices = append(indices, r.ChunkIndex)
		}
	}
	assert.Len(t, indices, 1, "adjacent chunks of one document must collapse to the best hit")
}

func TestQueryDefaultsTopK(t *testing.T) {
	h := newHarness()
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = "release notes draft revision"
	}
	h.seed(t, plannerDoc("task-6", time.Now()), texts...)

	resp, err := h.engine.Query(context.Background(), types.QueryParams{Query: "release notes"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), types.DefaultTopK)
}

func TestQueryValidation(t *testing.T) {
	h := newHarness()

	_, err := h.engine.Query(context.Background(), types.QueryParams{Query: ""})
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeValidation, pe.Code)

	_, err = h.engine.Query(context.Background(), types.QueryParams{Query: "x", TopK: -3})
	pe, ok = types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeValidation, pe.Code)
}

func TestQueryEmptyCorpusReturnsEmptyResults(t *testing.T) {
	h := newHarness()

	resp, err := h.engine.Query(context.Background(), types.QueryParams{Query: "anything at all"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalResults)
}

func TestQueryEmbedderFailureIsRetryable(t *testing.T) {
	h := newHarness()
	h.embedder.FailFunc = func(string) error { return assert.AnError }

	_, err := h.engine.Query(context.Background(), types.QueryParams{Query: "anything"})
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeEmbedding, pe.Code)
	assert.True(t, pe.Retryable())
}
