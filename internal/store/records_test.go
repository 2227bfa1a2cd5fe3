package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/charforge/agent/generation"
	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/llm/gemini"
	charimage "github.com/BaSui01/charforge/llm/image"
	"github.com/BaSui01/charforge/types"
)

func setupRepo(t *testing.T, opts ...RepositoryOption) *RecordRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "records.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	repo := NewRecordRepository(db, zap.NewNop(), opts...)
	require.NoError(t, repo.AutoMigrate(context.Background()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repo
}

type queryLog struct {
	mu  sync.Mutex
	ops []string
}

func (q *queryLog) RecordDBQuery(database, operation string, _ time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, database+":"+operation)
}

var mage = character.GenerationResult{
	Description: "불을 다루는 마법사",
	JobClass:    "화염술사",
	Stats:       character.AttributeSet{STR: 10, INT: 95, CON: 20, WIS: 70},
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord("s1", generation.SourceGenerated, mage, character.Range{Min: 1, Max: 100})
	assert.Equal(t, 195, rec.Total)
	assert.Equal(t, 1, rec.MinValue)
	assert.Equal(t, 100, rec.MaxValue)
	assert.Equal(t, mage, rec.Result())
	assert.Empty(t, rec.ID)
}

func TestRecordRepository_SaveAndGet(t *testing.T) {
	queries := &queryLog{}
	repo := setupRepo(t, WithQueryRecorder(queries))
	ctx := context.Background()

	rec := NewRecord("s1", generation.SourceGenerated, mage, character.DefaultRange())
	require.NoError(t, repo.Save(ctx, rec))
	require.Len(t, rec.ID, 36)

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, mage, got.Result())
	assert.Equal(t, "s1", got.SessionID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	assert.Equal(t, []string{"sqlite:insert", "sqlite:select", "sqlite:select"}, queries.ops)
}

func TestRecordRepository_List(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, job := range []string{"전사", "화염술사", "전사"} {
		res := mage
		res.JobClass = job
		rec := NewRecord("s1", generation.SourceManual, res, character.DefaultRange())
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Save(ctx, rec))
	}
	require.NoError(t, repo.Save(ctx, NewRecord("s2", generation.SourceGenerated, mage, character.DefaultRange())))

	all, total, err := repo.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, all, 4)

	bySession, total, err := repo.List(ctx, ListOptions{SessionID: "s1", Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, bySession, 2)
	// 最新的在前
	assert.Equal(t, "전사", bySession[0].JobClass)
	assert.True(t, bySession[0].CreatedAt.After(bySession[1].CreatedAt))

	warriors, total, err := repo.List(ctx, ListOptions{JobClass: " 전사 "})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, warriors, 2)

	page, _, err := repo.List(ctx, ListOptions{SessionID: "s1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestListOptions_Normalized(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: defaultListLimit}, ListOptions{}.Normalized())
	assert.Equal(t, ListOptions{Limit: maxListLimit}, ListOptions{Limit: 10000, Offset: -1}.Normalized())
}

func TestRecordRepository_AttachImage(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	ok, err := repo.AttachImage(ctx, "nobody", "x.png")
	require.NoError(t, err)
	assert.False(t, ok)

	older := NewRecord("s1", generation.SourceGenerated, mage, character.DefaultRange())
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, older))
	newer := NewRecord("s1", generation.SourceGenerated, mage, character.DefaultRange())
	require.NoError(t, repo.Save(ctx, newer))

	ok, err = repo.AttachImage(ctx, "s1", "generated/화염술사.png")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "generated/화염술사.png", got.ImagePath)
	got, err = repo.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ImagePath)
}

// =============================================================================
// Track
// =============================================================================

type scriptedClient struct {
	mu      sync.Mutex
	replies []*gemini.Response
}

func (c *scriptedClient) Send(context.Context, string, *gemini.Request) (*gemini.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func reply(parts ...gemini.Part) *gemini.Response {
	return &gemini.Response{Candidates: []gemini.Candidate{{Content: gemini.Content{Role: "model", Parts: parts}}}}
}

type pathStore struct{}

func (pathStore) Persist(img image.Image, hint string) (charimage.Handle, error) {
	return charimage.Handle{Path: "generated/" + hint + ".png", Name: hint + ".png"}, nil
}

func pngPayload(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestTrack_RecordsGeneratedAndManualResults(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	catalog := character.NewCatalog("", zap.NewNop())
	catalog.Replace(&character.BaseData{Definitions: character.NewDefinitionTable(nil)})

	client := &scriptedClient{replies: []*gemini.Response{
		reply(gemini.Part{Text: `{"description":"얼음 여왕","jobClass":"빙결술사","stats":{"STR":5,"INT":80,"CON":30,"WIS":60}}`}),
		reply(gemini.Part{InlineData: &gemini.InlineData{MimeType: "image/png", Data: pngPayload(t)}}),
	}}
	o := generation.New(generation.Config{
		SessionID:    "sess-1",
		Range:        character.Range{Min: 10, Max: 100},
		ImageEnabled: true,
	}, client, catalog, zap.NewNop(), generation.WithImageStore(pathStore{}))

	unsubscribe := repo.Track(o)
	defer unsubscribe()

	_, err := o.Generate(ctx, "ice queen")
	require.NoError(t, err)

	records, total, err := repo.List(ctx, ListOptions{SessionID: "sess-1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, generation.SourceGenerated, records[0].Source)
	assert.Equal(t, "빙결술사", records[0].JobClass)
	assert.Equal(t, 10, records[0].STR)
	assert.Equal(t, 10, records[0].MinValue)
	assert.Equal(t, "generated/빙결술사.png", records[0].ImagePath)

	o.SetJobClass("서리 마법사")
	unsubscribe()
	o.SetAttributes(1, 1, 1, 1, "")

	records, total, err = repo.List(ctx, ListOptions{SessionID: "sess-1", Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, generation.SourceManual, records[0].Source)
	assert.Equal(t, "서리 마법사", records[0].JobClass)
}
