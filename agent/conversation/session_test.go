package conversation

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/internal/cache"
	"github.com/BaSui01/charforge/llm/gemini"
	"github.com/BaSui01/charforge/types"
)

type scriptedClient struct {
	mu       sync.Mutex
	requests []*gemini.Request
	models   []string
	replies  []func() (*gemini.Response, error)
}

func (c *scriptedClient) Send(_ context.Context, model string, req *gemini.Request) (*gemini.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	c.models = append(c.models, model)
	if len(c.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	return next()
}

func textReply(text string) func() (*gemini.Response, error) {
	return func() (*gemini.Response, error) {
		return &gemini.Response{Candidates: []gemini.Candidate{{
			Content: gemini.Content{Role: "model", Parts: []gemini.Part{{Text: text}}},
		}}}, nil
	}
}

func failReply(err error) func() (*gemini.Response, error) {
	return func() (*gemini.Response, error) { return nil, err }
}

func TestSession_SendAppendsTurnsInOrder(t *testing.T) {
	client := &scriptedClient{replies: []func() (*gemini.Response, error){
		textReply("안녕하세요, 모험가여."),
		textReply("불의 마법을 추천합니다."),
	}}
	s := NewSession(SessionConfig{ID: "s1", SystemInstruction: "You are a game master."}, client, zap.NewNop())

	reply, err := s.Send(context.Background(), "안녕")
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요, 모험가여.", reply)

	_, err = s.Send(context.Background(), "어떤 마법이 좋을까?")
	require.NoError(t, err)

	assert.Equal(t, []Turn{
		UserTurn("안녕"),
		ModelTurn("안녕하세요, 모험가여."),
		UserTurn("어떤 마법이 좋을까?"),
		ModelTurn("불의 마법을 추천합니다."),
	}, s.History().AsContext())

	second := client.requests[1]
	require.Len(t, second.Contents, 3)
	assert.Equal(t, "user", second.Contents[0].Role)
	assert.Equal(t, "model", second.Contents[1].Role)
	assert.Equal(t, "어떤 마법이 좋을까?", second.Contents[2].Parts[0].Text)
	require.NotNil(t, second.SystemInstruction)
	assert.Equal(t, "You are a game master.", second.SystemInstruction.Parts[0].Text)
	assert.Equal(t, gemini.DefaultTextModel, client.models[0])
}

func TestSession_FailureKeepsUserTurnOnly(t *testing.T) {
	transport := types.NewError(types.ErrTransport, "boom")
	client := &scriptedClient{replies: []func() (*gemini.Response, error){failReply(transport)}}
	s := NewSession(SessionConfig{ID: "s2"}, client, nil)

	_, err := s.Send(context.Background(), "hello")
	assert.True(t, types.IsCode(err, types.ErrTransport))
	assert.Equal(t, []Turn{UserTurn("hello")}, s.History().AsContext())
}

func TestSession_NoTextInResponse(t *testing.T) {
	client := &scriptedClient{replies: []func() (*gemini.Response, error){
		func() (*gemini.Response, error) { return &gemini.Response{}, nil },
	}}
	s := NewSession(SessionConfig{ID: "s3"}, client, nil)

	_, err := s.Send(context.Background(), "hello")
	assert.True(t, types.IsCode(err, types.ErrNoResult))
	assert.Equal(t, 1, s.History().Len())
}

func TestSession_SystemTurnsMergeIntoInstruction(t *testing.T) {
	client := &scriptedClient{replies: []func() (*gemini.Response, error){textReply("ok")}}
	s := NewSession(SessionConfig{ID: "s4", SystemInstruction: "base"}, client, nil,
		WithHistory(NewHistory(Turn{Role: types.RoleSystem, Text: "extra"})))

	_, err := s.Send(context.Background(), "q")
	require.NoError(t, err)

	req := client.requests[0]
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "base\nextra", req.SystemInstruction.Parts[0].Text)
}

func TestSession_AskAndSendMediaSkipHistory(t *testing.T) {
	client := &scriptedClient{replies: []func() (*gemini.Response, error){
		textReply("a video of a dragon"),
		textReply("42"),
	}}
	s := NewSession(SessionConfig{ID: "s5", Model: gemini.ModelPro15}, client, nil)

	got, err := s.SendMedia(context.Background(), "describe", gemini.MIMEType("mp4"), []byte("raw-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "a video of a dragon", got)

	media := client.requests[0].Contents[0].Parts[1].InlineData
	require.NotNil(t, media)
	assert.Equal(t, "video/mp4", media.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("raw-bytes")), media.Data)

	got, err = s.Ask(context.Background(), "answer?")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	assert.Equal(t, 0, s.History().Len())
	assert.Equal(t, gemini.ModelPro15, client.models[1])

	_, err = s.SendMedia(context.Background(), "describe", "video/mp4", nil)
	assert.True(t, types.IsCode(err, types.ErrInvalidRequest))
}

func TestRedisStore_RoundTripAndRestore(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(cache.Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	store := NewRedisStore(manager)
	client := &scriptedClient{replies: []func() (*gemini.Response, error){textReply("first"), textReply("second")}}

	s := NewSession(SessionConfig{ID: "persisted"}, client, zap.NewNop(), WithStore(store))
	_, err = s.Send(context.Background(), "one")
	require.NoError(t, err)

	restored, err := RestoreSession(context.Background(), SessionConfig{ID: "persisted"}, client, store, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []Turn{UserTurn("one"), ModelTurn("first")}, restored.History().AsContext())

	_, err = restored.Send(context.Background(), "two")
	require.NoError(t, err)

	turns, err := store.Load(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Len(t, turns, 4)
	assert.Equal(t, ModelTurn("second"), turns[3])
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "a", UserTurn("x")))
	require.NoError(t, store.Append(ctx, "a", ModelTurn("y")))

	turns, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []Turn{UserTurn("x"), ModelTurn("y")}, turns)

	empty, err := store.Load(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTokenCounter_FallbackEstimate(t *testing.T) {
	c := NewTokenCounter("no-such-encoding", zap.NewNop())
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 2, c.Count("abcdefgh"))
	assert.Equal(t, 3, c.CountTurns([]Turn{UserTurn("abcd"), ModelTurn("efgh"), UserTurn("i")}))
}

type tokenSink struct{ observed []int }

func (s *tokenSink) RecordHistoryTokens(tokens int) { s.observed = append(s.observed, tokens) }

func TestSession_RecordsRequestTokens(t *testing.T) {
	client := &scriptedClient{replies: []func() (*gemini.Response, error){
		textReply("efgh"),
		failReply(errors.New("down")),
	}}
	sink := &tokenSink{}
	s := NewSession(SessionConfig{ID: "tok"}, client, zap.NewNop(),
		WithTokenCounter(NewTokenCounter("no-such-encoding", zap.NewNop())),
		WithTokenRecorder(sink))

	_, err := s.Send(context.Background(), "abcd")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "ijkl")
	require.Error(t, err)

	// 请求前计数：第一次只有 "abcd"，第二次含 "abcd" "efgh" "ijkl"
	assert.Equal(t, []int{1, 3}, sink.observed)
}
