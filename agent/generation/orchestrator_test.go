package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/llm/gemini"
	charimage "github.com/BaSui01/charforge/llm/image"
	"github.com/BaSui01/charforge/types"
)

// =============================================================================
// 🧪 测试替身
// =============================================================================

type reply func(ctx context.Context) (*gemini.Response, error)

type fakeClient struct {
	mu       sync.Mutex
	noKey    bool
	requests []*gemini.Request
	models   []string
	replies  []reply
}

func (c *fakeClient) HasAPIKey() bool { return !c.noKey }

func (c *fakeClient) Send(ctx context.Context, model string, req *gemini.Request) (*gemini.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.models = append(c.models, model)
	if len(c.replies) == 0 {
		c.mu.Unlock()
		return nil, errors.New("no scripted reply")
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	c.mu.Unlock()
	return next(ctx)
}

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func partsReply(parts ...gemini.Part) reply {
	return func(context.Context) (*gemini.Response, error) {
		return &gemini.Response{Candidates: []gemini.Candidate{{
			Content: gemini.Content{Role: "model", Parts: parts},
		}}}, nil
	}
}

func textReply(text string) reply {
	return partsReply(gemini.Part{Text: text})
}

func errReply(err error) reply {
	return func(context.Context) (*gemini.Response, error) { return nil, err }
}

type fakeStore struct {
	mu    sync.Mutex
	err   error
	hints []string
}

func (s *fakeStore) Persist(img image.Image, hint string) (charimage.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = append(s.hints, hint)
	if s.err != nil {
		return charimage.Handle{}, s.err
	}
	b := img.Bounds()
	return charimage.Handle{Path: "/tmp/" + hint + ".png", Name: hint + ".png", Width: b.Dx(), Height: b.Dy(), CreatedAt: time.Now()}, nil
}

type fakeRecorder struct {
	mu          sync.Mutex
	stages      []string
	transitions []string
}

func (r *fakeRecorder) RecordGeneration(stage, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage+":"+outcome)
}

func (r *fakeRecorder) RecordStateTransition(_, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func pngPayload(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func imagePart(t *testing.T) gemini.Part {
	return gemini.Part{InlineData: &gemini.InlineData{MimeType: "image/png", Data: pngPayload(t)}}
}

func loadedCatalog() *character.Catalog {
	c := character.NewCatalog("", zap.NewNop())
	c.Replace(&character.BaseData{
		Definitions: character.NewDefinitionTable([]character.AttributeDefinition{
			{Key: "STR", Name: "힘", Description: "물리 공격력", Icon: "💪"},
		}),
		Examples: []character.CharacterExample{
			{Type: "전사", Description: "강인한 근접 전투가", Stats: character.AttributeSet{STR: 90, INT: 20, CON: 80, WIS: 30}},
		},
	})
	return c
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []State
	for _, e := range l.events {
		if e.Type == EventStateChanged {
			out = append(out, e.To)
		}
	}
	return out
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestOrchestrator(client *fakeClient, imageEnabled bool, opts ...Option) (*Orchestrator, *eventLog) {
	o := New(Config{
		SessionID:    "sess-1",
		Range:        character.Range{Min: 1, Max: 100},
		ImageEnabled: imageEnabled,
	}, client, loadedCatalog(), zap.NewNop(), opts...)
	log := &eventLog{}
	o.Subscribe(log.handle)
	return o, log
}

const fireMageReply = `좋아요! 다음과 같습니다:
{"description":"불을 다루는 마법사","jobClass":"화염술사","stats":{"STR":150,"INT":90,"CON":10,"WIS":5}}
즐거운 모험 되세요.`

// =============================================================================
// 🚀 生成序列
// =============================================================================

func TestGenerate_ClampsAttributesIntoRange(t *testing.T) {
	client := &fakeClient{replies: []reply{textReply(fireMageReply)}}
	o, log := newTestOrchestrator(client, false)

	out, err := o.Generate(context.Background(), "fire mage")
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	assert.Equal(t, character.AttributeSet{STR: 100, INT: 90, CON: 10, WIS: 5}, out.Result.Stats)
	assert.Equal(t, "화염술사", out.Result.JobClass)
	assert.Equal(t, StateStatsReady, out.FinalState)
	assert.Equal(t, StateIdle, o.State())

	published := log.ofType(EventResultPublished)
	require.Len(t, published, 1)
	assert.Equal(t, 100, published[0].Result.Stats.STR)
	assert.Equal(t, "sess-1", published[0].SessionID)

	prompt := client.requests[0].Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "캐릭터 설명: fire mage")
	assert.Contains(t, prompt, "1-100")
	assert.Equal(t, gemini.DefaultTextModel, client.models[0])
}

func TestGenerate_NoPayloadFailsStatsStage(t *testing.T) {
	client := &fakeClient{replies: []reply{textReply("죄송합니다, 만들 수 없습니다.")}}
	store := &fakeStore{}
	o, log := newTestOrchestrator(client, true, WithImageStore(store))

	out, err := o.Generate(context.Background(), "fire mage")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrExtractionFailure))
	assert.Equal(t, StateStatsFailed, out.FinalState)

	assert.Empty(t, log.ofType(EventResultPublished))
	assert.Equal(t, 1, client.calls(), "image stage must not run")
	assert.Empty(t, store.hints)
	assert.Equal(t, []State{StateStatsPending, StateStatsFailed, StateIdle}, log.states())

	failed := log.ofType(EventFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, string(types.ErrExtractionFailure), failed[0].Code)

	_, ok := o.Result()
	assert.False(t, ok)
}

func TestGenerate_ParseFailure(t *testing.T) {
	client := &fakeClient{replies: []reply{textReply(`{"jobClass":"","stats":{"STR":1}}`)}}
	o, _ := newTestOrchestrator(client, false)

	_, err := o.Generate(context.Background(), "fire mage")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrParseFailure))
	assert.Equal(t, StateIdle, o.State())
}

func TestGenerate_ResponseWithoutTextIsExtractionFailure(t *testing.T) {
	client := &fakeClient{replies: []reply{partsReply()}}
	o, _ := newTestOrchestrator(client, false)

	_, err := o.Generate(context.Background(), "fire mage")
	assert.True(t, types.IsCode(err, types.ErrExtractionFailure))
}

func TestGenerate_TransportErrorPropagates(t *testing.T) {
	transport := types.NewError(types.ErrTransport, "http 500").WithHTTPStatus(500)
	client := &fakeClient{replies: []reply{errReply(transport)}}
	rec := &fakeRecorder{}
	o, _ := newTestOrchestrator(client, false, WithRecorder(rec))

	out, err := o.Generate(context.Background(), "fire mage")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransport))
	assert.Equal(t, StateStatsFailed, out.FinalState)
	assert.Contains(t, rec.stages, "stats:transport_error")
}

func TestGenerate_ImageDisabledNeverMaterializes(t *testing.T) {
	client := &fakeClient{replies: []reply{textReply(fireMageReply)}}
	store := &fakeStore{}
	o, log := newTestOrchestrator(client, false, WithImageStore(store))

	out, err := o.Generate(context.Background(), "fire mage")
	require.NoError(t, err)
	assert.Equal(t, StateStatsReady, out.FinalState)
	assert.Nil(t, out.Image)
	assert.Empty(t, store.hints)
	assert.Equal(t, 1, client.calls())
	assert.Equal(t, []State{StateStatsPending, StateStatsReady, StateIdle}, log.states())
}

func TestGenerate_FullSequenceWithImage(t *testing.T) {
	client := &fakeClient{replies: []reply{
		textReply(fireMageReply),
		partsReply(gemini.Part{Text: "여기 당신의 캐릭터입니다."}, imagePart(t), gemini.Part{Text: "무시됨"}),
	}}
	store := &fakeStore{}
	rec := &fakeRecorder{}
	o, log := newTestOrchestrator(client, true, WithImageStore(store), WithRecorder(rec))

	out, err := o.Generate(context.Background(), "fire mage")
	require.NoError(t, err)
	assert.Equal(t, StateImageReady, out.FinalState)
	require.NotNil(t, out.Image)
	require.NotNil(t, out.Image.Handle)
	assert.Equal(t, 4, out.Image.Handle.Width)
	assert.Equal(t, "image/png", out.Image.MIMEType)
	assert.Equal(t, []string{"여기 당신의 캐릭터입니다."}, out.Image.Commentary)
	assert.Equal(t, []string{"화염술사"}, store.hints)

	assert.Equal(t, []State{
		StateStatsPending, StateStatsReady, StateImagePending, StateImageReady, StateIdle,
	}, log.states())
	assert.Len(t, log.ofType(EventCommentary), 1)
	assert.Len(t, log.ofType(EventImageReady), 1)

	imgReq := client.requests[1]
	require.NotNil(t, imgReq.GenerationConfig)
	assert.Equal(t, []string{gemini.ModalityText, gemini.ModalityImage}, imgReq.GenerationConfig.ResponseModalities)
	assert.Contains(t, imgReq.Contents[0].Parts[0].Text, "fire mage, Job class: 화염술사 (Fantasy Mage)")
	assert.Equal(t, gemini.DefaultImageModel, client.models[1])

	img, handle := o.CurrentImage()
	assert.NotNil(t, img)
	assert.NotNil(t, handle)

	assert.Equal(t, []string{
		"idle->stats_pending", "stats_pending->stats_ready", "stats_ready->image_pending",
		"image_pending->image_ready", "image_ready->idle",
	}, rec.transitions)
}

func TestGenerate_FirstImageWins(t *testing.T) {
	client := &fakeClient{replies: []reply{
		textReply(fireMageReply),
		partsReply(imagePart(t), gemini.Part{InlineData: &gemini.InlineData{MimeType: "image/png", Data: "!!!"}}),
	}}
	o, _ := newTestOrchestrator(client, true)

	out, err := o.Generate(context.Background(), "fire mage")
	require.NoError(t, err)
	assert.Equal(t, StateImageReady, out.FinalState)
	assert.NoError(t, out.ImageErr)
}

func TestGenerate_UndecodableImageFailsImageStage(t *testing.T) {
	client := &fakeClient{replies: []reply{
		textReply(fireMageReply),
		partsReply(gemini.Part{InlineData: &gemini.InlineData{MimeType: "image/png", Data: "bm90IGFuIGltYWdl"}}, imagePart(t)),
	}}
	store := &fakeStore{}
	o, log := newTestOrchestrator(client, true, WithImageStore(store))

	out, err := o.Generate(context.Background(), "fire mage")
	require.NoError(t, err, "image failures are reported on the outcome")
	assert.Equal(t, StateImageFailed, out.FinalState)
	assert.True(t, types.IsCode(out.ImageErr, types.ErrDecodeFailure))
	assert.NotNil(t, out.Result, "stats result survives image failure")
	assert.Empty(t, store.hints)
	assert.Len(t, log.ofType(EventResultPublished), 1)
}

func TestGenerate_NoImagePartIsNoResult(t *testing.T) {
	client := &fakeClient{replies: []reply{
		textReply(fireMageReply),
		textReply("이미지를 만들 수 없습니다."),
	}}
	o, log := newTestOrchestrator(client, true)

	out, err := o.Generate(context.Background(), "fire mage")
	require.NoError(t, err)
	assert.Equal(t, StateImageFailed, out.FinalState)
	assert.True(t, types.IsCode(out.ImageErr, types.ErrNoResult))
	assert.Len(t, log.ofType(EventCommentary), 1)
}

func TestGenerate_PersistFailureIsWarning(t *testing.T) {
	client := &fakeClient{replies: []reply{textReply(fireMageReply), partsReply(imagePart(t))}}
	store := &fakeStore{err: errors.New("disk full")}
	o, log := newTestOrchestrator(client, true, WithImageStore(store))

	out, err := o.Generate(context.Background(), "fire mage")
	require.NoError(t, err)
	assert.Equal(t, StateImageReady, out.FinalState)
	require.NotNil(t, out.Image)
	assert.Nil(t, out.Image.Handle)
	assert.EqualError(t, out.Image.PersistErr, "disk full")

	warnings := log.ofType(EventWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Text, "disk full")
}

func TestGenerate_BusyRejectsConcurrentRequest(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	client := &fakeClient{replies: []reply{func(context.Context) (*gemini.Response, error) {
		close(entered)
		<-release
		return textReply(fireMageReply)(context.Background())
	}}}
	o, _ := newTestOrchestrator(client, false)

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), "fire mage")
		done <- err
	}()
	<-entered

	assert.Equal(t, StateStatsPending, o.State())
	_, err := o.Generate(context.Background(), "ice queen")
	assert.True(t, types.IsCode(err, types.ErrGenerationBusy))

	o.SetImageGeneration(true)
	_, err = o.RegenerateImage(context.Background())
	assert.True(t, types.IsCode(err, types.ErrGenerationBusy))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, 1, client.calls())
}

func TestGenerate_RangeChangedMidFlightAppliesAtCommit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	client := &fakeClient{replies: []reply{func(context.Context) (*gemini.Response, error) {
		close(entered)
		<-release
		return textReply(fireMageReply)(context.Background())
	}}}
	o, log := newTestOrchestrator(client, false)

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := o.Generate(context.Background(), "fire mage")
		done <- result{out, err}
	}()
	<-entered

	rng, r := o.SetRange(1, 50)
	assert.Nil(t, r, "no result to re-validate yet")
	assert.Equal(t, StateStatsPending, o.State())

	close(release)
	res := <-done
	require.NoError(t, res.err)

	want := character.AttributeSet{STR: 50, INT: 50, CON: 10, WIS: 5}
	assert.Equal(t, want, res.out.Result.Stats)
	cur, ok := o.Result()
	require.True(t, ok)
	assert.Equal(t, want, cur.Stats)
	assert.Equal(t, cur.Stats, cur.Stats.Clamp(rng.Min, rng.Max))

	published := log.ofType(EventResultPublished)
	require.Len(t, published, 1)
	assert.Equal(t, SourceGenerated, published[0].Source)
	assert.Equal(t, want, published[0].Result.Stats)
}

func TestGenerate_ManualOverrideMidFlightIsSuperseded(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	client := &fakeClient{replies: []reply{func(context.Context) (*gemini.Response, error) {
		close(entered)
		<-release
		return textReply(fireMageReply)(context.Background())
	}}}
	o, log := newTestOrchestrator(client, false)

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), "fire mage")
		done <- err
	}()
	<-entered

	manual := o.SetAttributes(150, -5, 40, 40, "전사")
	assert.Equal(t, character.AttributeSet{STR: 100, INT: 1, CON: 40, WIS: 40}, manual.Stats)
	assert.Equal(t, StateStatsPending, o.State(), "manual overrides do not drive the state machine")

	close(release)
	require.NoError(t, <-done)

	published := log.ofType(EventResultPublished)
	require.Len(t, published, 2)
	assert.Equal(t, SourceManual, published[0].Source)
	assert.Equal(t, SourceGenerated, published[1].Source)

	cur, ok := o.Result()
	require.True(t, ok)
	assert.Equal(t, "화염술사", cur.JobClass)
	assert.Equal(t, character.AttributeSet{STR: 100, INT: 90, CON: 10, WIS: 5}, cur.Stats)
}

func TestGenerate_CancelledContextEndsInFailedState(t *testing.T) {
	client := &fakeClient{replies: []reply{func(ctx context.Context) (*gemini.Response, error) {
		<-ctx.Done()
		return nil, types.NewError(types.ErrTransport, "request cancelled").WithCause(ctx.Err())
	}}}
	o, log := newTestOrchestrator(client, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := o.Generate(ctx, "fire mage")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStatsFailed, out.FinalState)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, []State{StateStatsPending, StateStatsFailed, StateIdle}, log.states())
}

func TestGenerate_ConfigurationMissing(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		client := &fakeClient{noKey: true}
		o, log := newTestOrchestrator(client, false)
		_, err := o.Generate(context.Background(), "fire mage")
		assert.True(t, types.IsCode(err, types.ErrConfigurationMissing))
		assert.Empty(t, log.states(), "no sequence starts")
		assert.Zero(t, client.calls())
	})

	t.Run("base data not loaded", func(t *testing.T) {
		client := &fakeClient{}
		o := New(Config{}, client, character.NewCatalog("", nil), nil)
		_, err := o.Generate(context.Background(), "fire mage")
		assert.True(t, types.IsCode(err, types.ErrConfigurationMissing))
	})

	t.Run("nil client", func(t *testing.T) {
		o := New(Config{}, nil, loadedCatalog(), nil)
		_, err := o.Generate(context.Background(), "fire mage")
		assert.True(t, types.IsCode(err, types.ErrConfigurationMissing))
	})
}

func TestGenerate_EmptyDescriptionUsesDefault(t *testing.T) {
	client := &fakeClient{replies: []reply{textReply(fireMageReply)}}
	o, _ := newTestOrchestrator(client, false)

	_, err := o.Generate(context.Background(), "   ")
	require.NoError(t, err)
	assert.Contains(t, client.requests[0].Contents[0].Parts[0].Text, character.DefaultDescription)
	assert.Equal(t, character.DefaultDescription, o.Description())
}

// =============================================================================
// 🖼️ 重新生成图像
// =============================================================================

func TestRegenerateImage(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		o, _ := newTestOrchestrator(&fakeClient{}, false)
		_, err := o.RegenerateImage(context.Background())
		assert.True(t, types.IsCode(err, types.ErrInvalidRequest))
	})

	t.Run("uses current job class", func(t *testing.T) {
		client := &fakeClient{replies: []reply{partsReply(imagePart(t))}}
		store := &fakeStore{}
		o, log := newTestOrchestrator(client, true, WithImageStore(store))
		o.SetAttributes(50, 50, 50, 50, "얼음의 여제")

		out, err := o.RegenerateImage(context.Background())
		require.NoError(t, err)
		require.NotNil(t, out.Handle)
		assert.Equal(t, []string{"얼음의 여제"}, store.hints)
		assert.Contains(t, client.requests[0].Contents[0].Parts[0].Text, "Job class: Ice Empress")
		assert.Equal(t, []State{StateImagePending, StateImageReady, StateIdle}, log.states())

		published := log.ofType(EventResultPublished)
		require.Len(t, published, 2, "regenerating re-publishes the current result")
		assert.Equal(t, SourceManual, published[1].Source)
		assert.Equal(t, *published[0].Result, *published[1].Result)
	})

	t.Run("without result falls back to default job", func(t *testing.T) {
		client := &fakeClient{replies: []reply{errReply(types.NewError(types.ErrTransport, "boom"))}}
		o, log := newTestOrchestrator(client, true)

		_, err := o.RegenerateImage(context.Background())
		assert.True(t, types.IsCode(err, types.ErrTransport))
		assert.Contains(t, client.requests[0].Contents[0].Parts[0].Text, "판타지 캐릭터 (Fantasy Character)")
		assert.Equal(t, []State{StateImagePending, StateImageFailed, StateIdle}, log.states())
		assert.Empty(t, log.ofType(EventResultPublished))
	})
}

// =============================================================================
// ✍️ 手动覆盖
// =============================================================================

func TestSetAttributes_ClampsAndPublishes(t *testing.T) {
	o, log := newTestOrchestrator(&fakeClient{}, false)

	r := o.SetAttributes(150, -5, 40, 40, "")
	assert.Equal(t, character.AttributeSet{STR: 100, INT: 1, CON: 40, WIS: 40}, r.Stats)
	assert.Equal(t, character.UndecidedJobClass, r.JobClass)
	assert.Equal(t, character.ManualDescription, r.Description)

	published := log.ofType(EventResultPublished)
	require.Len(t, published, 1)
	assert.Equal(t, r, *published[0].Result)
	assert.Empty(t, log.states(), "manual overrides do not drive the state machine")
}

func TestSetJobClass(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeClient{}, false)

	_, err := o.SetJobClass("바드")
	assert.True(t, types.IsCode(err, types.ErrNoResult))
	_, ok := o.Result()
	assert.False(t, ok)

	o.SetAttributes(10, 20, 30, 40, "전사")
	r, err := o.SetJobClass("바드")
	require.NoError(t, err)
	assert.Equal(t, "바드", r.JobClass)
	assert.Equal(t, character.JobClassChangedMessage, r.Description)
	assert.Equal(t, character.AttributeSet{STR: 10, INT: 20, CON: 30, WIS: 40}, r.Stats)
}

func TestSetRange(t *testing.T) {
	o, log := newTestOrchestrator(&fakeClient{}, false)

	rng, r := o.SetRange(50, 60)
	assert.Nil(t, r)
	assert.Equal(t, o.Range(), rng)
	assert.Empty(t, log.ofType(EventResultPublished))

	o.SetAttributes(100, 1, 40, 40, "")
	rng, r = o.SetRange(0, 20)
	assert.Equal(t, character.Range{Min: 1, Max: 20}.Normalize(), rng)
	require.NotNil(t, r)
	assert.Equal(t, character.RangeAdjustedDescription(rng), r.Description)
	assert.Equal(t, character.UndecidedJobClass, r.JobClass)
	// 50-60 区间下先被校验为 {60,50,50,50}，再收窄到 1-20
	assert.Equal(t, character.AttributeSet{STR: 20, INT: 20, CON: 20, WIS: 20}, r.Stats)
}

func TestApplyExample(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeClient{}, false)

	r, err := o.ApplyExample("전사")
	require.NoError(t, err)
	assert.Equal(t, "전사", r.JobClass)
	assert.Equal(t, character.AttributeSet{STR: 90, INT: 20, CON: 80, WIS: 30}, r.Stats)

	_, err = o.ApplyExample("없는 직업")
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	ex, ok := o.RandomExample()
	require.True(t, ok)
	assert.Equal(t, "전사", ex.Type)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	o := New(Config{}, &fakeClient{}, loadedCatalog(), nil)
	log := &eventLog{}
	unsubscribe := o.Subscribe(log.handle)

	o.SetAttributes(1, 1, 1, 1, "a")
	unsubscribe()
	unsubscribe()
	o.SetAttributes(2, 2, 2, 2, "b")

	assert.Len(t, log.ofType(EventResultPublished), 1)
}

func TestOrchestratorsAreIndependent(t *testing.T) {
	a, _ := newTestOrchestrator(&fakeClient{}, false)
	b, _ := newTestOrchestrator(&fakeClient{}, false)

	a.SetAttributes(10, 10, 10, 10, "전사")
	_, ok := b.Result()
	assert.False(t, ok)
	b.SetRange(1, 10)
	assert.Equal(t, character.Range{Min: 1, Max: 100}, a.Range())
}
