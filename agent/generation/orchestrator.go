package generation

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/agent/structured"
	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/character/prompt"
	"github.com/BaSui01/charforge/llm/gemini"
	charimage "github.com/BaSui01/charforge/llm/image"
	"github.com/BaSui01/charforge/types"
)

const instrumentationName = "github.com/BaSui01/charforge/agent/generation"

// Client 生成服务客户端
type Client interface {
	Send(ctx context.Context, model string, req *gemini.Request) (*gemini.Response, error)
}

// keyedClient 可报告是否配置了 API Key 的客户端
type keyedClient interface {
	HasAPIKey() bool
}

// ImageStore 图像持久化
type ImageStore interface {
	Persist(img image.Image, nameHint string) (charimage.Handle, error)
}

// Recorder 指标记录器
type Recorder interface {
	RecordGeneration(stage, outcome string, duration time.Duration)
	RecordStateTransition(sessionID, from, to string)
}

// Config 编排器配置
type Config struct {
	SessionID    string
	TextModel    string
	ImageModel   string
	Range        character.Range
	ImageEnabled bool
	Translations prompt.TranslationTable
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithImageStore 设置图像持久化
func WithImageStore(s ImageStore) Option {
	return func(o *Orchestrator) { o.images = s }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// ImageOutput 图像阶段的产物
type ImageOutput struct {
	Image      image.Image       `json:"-"`
	MIMEType   string            `json:"mime_type"`
	Handle     *charimage.Handle `json:"handle,omitempty"`
	PersistErr error             `json:"-"`
	Commentary []string          `json:"commentary,omitempty"`
}

// Outcome 一次完整生成的结果
type Outcome struct {
	Result     *character.GenerationResult `json:"result,omitempty"`
	Image      *ImageOutput                `json:"image,omitempty"`
	FinalState State                       `json:"final_state"`
	ImageErr   error                       `json:"-"`
}

// Orchestrator 串联提示词构建、模型调用、载荷提取、属性校验与图像生成。
//
// 每个实例同一时刻至多运行一个生成序列，非 Idle 时的生成请求直接返回
// GENERATION_BUSY，不排队。实例之间不共享可变状态。
type Orchestrator struct {
	cfg      Config
	client   Client
	catalog  *character.Catalog
	images   ImageStore
	recorder Recorder
	tracer   trace.Tracer
	logger   *zap.Logger

	observers observers

	mu           sync.Mutex
	state        State
	rng          character.Range
	imageEnabled bool
	description  string
	result       *character.GenerationResult
	image        image.Image
	handle       *charimage.Handle
}

// New 创建编排器
func New(cfg Config, client Client, catalog *character.Catalog, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TextModel == "" {
		cfg.TextModel = gemini.DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = gemini.DefaultImageModel
	}
	if cfg.Translations == nil {
		cfg.Translations = prompt.DefaultTranslations()
	}
	rng := cfg.Range
	if rng == (character.Range{}) {
		rng = character.DefaultRange()
	}

	o := &Orchestrator{
		cfg:          cfg,
		client:       client,
		catalog:      catalog,
		tracer:       otel.Tracer(instrumentationName),
		logger:       logger.With(zap.String("component", "orchestrator"), zap.String("session_id", cfg.SessionID)),
		state:        StateIdle,
		rng:          rng.Normalize(),
		imageEnabled: cfg.ImageEnabled,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// =============================================================================
// 🔍 读取
// =============================================================================

// Subscribe 订阅事件，返回取消订阅函数
func (o *Orchestrator) Subscribe(h Handler) func() {
	return o.observers.subscribe(h)
}

// SessionID 会话 ID
func (o *Orchestrator) SessionID() string { return o.cfg.SessionID }

// State 当前状态
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Result 当前结果副本
func (o *Orchestrator) Result() (character.GenerationResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return character.GenerationResult{}, false
	}
	return *o.result, true
}

// Range 当前属性区间
func (o *Orchestrator) Range() character.Range {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng
}

// Description 最近一次生成使用的描述
func (o *Orchestrator) Description() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.description
}

// CurrentImage 当前图像及其持久化引用（未持久化时为 nil）
func (o *Orchestrator) CurrentImage() (image.Image, *charimage.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.image, o.handle
}

// ImageGenerationEnabled 是否启用图像阶段
func (o *Orchestrator) ImageGenerationEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.imageEnabled
}

// SetImageGeneration 启用或关闭图像阶段，对下一个序列生效
func (o *Orchestrator) SetImageGeneration(enabled bool) {
	o.mu.Lock()
	o.imageEnabled = enabled
	o.mu.Unlock()
	o.logger.Info("image generation toggled", zap.Bool("enabled", enabled))
}

// RandomExample 随机返回一个示例
func (o *Orchestrator) RandomExample() (character.CharacterExample, bool) {
	if o.catalog == nil {
		return character.CharacterExample{}, false
	}
	return o.catalog.Snapshot().RandomExample()
}

// =============================================================================
// 🚀 生成序列
// =============================================================================

// Generate 执行完整生成：属性阶段，以及启用时的图像阶段。
//
// 属性阶段失败时返回错误，Outcome.FinalState 为 StatsFailed；
// 图像阶段失败不返回错误，记录在 Outcome.ImageErr 中。
func (o *Orchestrator) Generate(ctx context.Context, description string) (*Outcome, error) {
	if err := o.checkConfigured(true); err != nil {
		return nil, err
	}
	if err := o.begin(StateStatsPending); err != nil {
		return nil, err
	}
	defer o.finish()

	ctx, span := o.tracer.Start(ctx, "generation.generate",
		trace.WithAttributes(attribute.String("session.id", o.cfg.SessionID)))
	defer span.End()

	desc := prompt.NormalizeDescription(description)
	o.mu.Lock()
	o.description = desc
	rng := o.rng
	imageEnabled := o.imageEnabled
	o.mu.Unlock()

	result, err := o.statsStage(ctx, desc, rng)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &Outcome{FinalState: StateStatsFailed}, err
	}

	out := &Outcome{Result: result, FinalState: StateStatsReady}
	if !imageEnabled {
		return out, nil
	}

	if err := o.transition(StateImagePending); err != nil {
		return out, err
	}
	img, err := o.imageStage(ctx, desc, result.JobClass)
	if err != nil {
		span.RecordError(err)
		out.FinalState = StateImageFailed
		out.ImageErr = err
		return out, nil
	}
	out.Image = img
	out.FinalState = StateImageReady
	return out, nil
}

// RegenerateImage 只重新生成图像，使用当前职业名与最近的描述。
// 存在当前结果时先经校验重新发布。
func (o *Orchestrator) RegenerateImage(ctx context.Context) (*ImageOutput, error) {
	if !o.ImageGenerationEnabled() {
		return nil, types.NewError(types.ErrInvalidRequest, "image generation is disabled").
			WithHTTPStatus(http.StatusBadRequest)
	}
	if err := o.checkConfigured(false); err != nil {
		return nil, err
	}
	if err := o.begin(StateImagePending); err != nil {
		return nil, err
	}
	defer o.finish()

	ctx, span := o.tracer.Start(ctx, "generation.regenerate_image",
		trace.WithAttributes(attribute.String("session.id", o.cfg.SessionID)))
	defer span.End()

	o.mu.Lock()
	desc := o.description
	hasResult := o.result != nil
	o.mu.Unlock()

	jobClass := ""
	if hasResult {
		// 当前结果重新校验并整体发布
		republished := o.publishManual(func(cur *character.GenerationResult) character.GenerationResult {
			return *cur
		})
		jobClass = republished.JobClass
	}

	img, err := o.imageStage(ctx, desc, jobClass)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return img, err
}

func (o *Orchestrator) statsStage(ctx context.Context, desc string, rng character.Range) (*character.GenerationResult, error) {
	start := time.Now()
	snap := o.catalog.Snapshot()

	p := prompt.BuildStatsPrompt(desc, snap.Definitions, snap.Examples, rng.Min, rng.Max)
	resp, err := o.client.Send(ctx, o.cfg.TextModel, gemini.NewTextRequest(p))
	if err == nil {
		var parsed *character.GenerationResult
		if parsed, err = decodeStats(resp); err == nil {
			// 以提交时的区间校验，序列进行中区间可能已被调整
			o.mu.Lock()
			validated := parsed.Validated(o.rng)
			o.result = &validated
			o.mu.Unlock()

			o.record("stats", "success", start)
			if err := o.transition(StateStatsReady); err != nil {
				return nil, err
			}
			published := validated
			o.publish(Event{Type: EventResultPublished, Result: &published, Source: SourceGenerated})
			o.logger.Info("character generated",
				zap.String("job_class", validated.JobClass),
				zap.String("stats", validated.Stats.String()),
				zap.Int("total", validated.Stats.Total()),
				zap.Float64("average", validated.Stats.Average()))
			return &validated, nil
		}
	}

	o.record("stats", outcomeLabel(err), start)
	o.logger.Warn("stats stage failed", zap.Error(err))
	if terr := o.transition(StateStatsFailed); terr != nil {
		return nil, terr
	}
	o.publishFailure(err)
	return nil, err
}

// decodeStats 在第一个候选的第一个文本片段上运行提取与解析
func decodeStats(resp *gemini.Response) (*character.GenerationResult, error) {
	text, ok := resp.FirstText()
	if !ok {
		return nil, types.NewError(types.ErrExtractionFailure, "model response contains no text part")
	}
	return structured.DecodeGenerationResult(text)
}

// imageStage 要求当前状态为 ImagePending。
// 文本片段作为附带说明发布；第一个内联数据片段决定结果，其后的片段被忽略。
func (o *Orchestrator) imageStage(ctx context.Context, desc, jobClass string) (*ImageOutput, error) {
	start := time.Now()

	req := gemini.NewTextRequest(prompt.BuildImagePrompt(desc, jobClass, o.cfg.Translations)).
		WithResponseModalities(gemini.ModalityText, gemini.ModalityImage)
	resp, err := o.client.Send(ctx, o.cfg.ImageModel, req)
	if err != nil {
		return nil, o.imageFailed(err, start)
	}

	var commentary []string
	for _, part := range resp.Parts() {
		if part.Text != "" {
			commentary = append(commentary, part.Text)
			o.publish(Event{Type: EventCommentary, Text: part.Text})
			continue
		}
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}

		img, err := charimage.Decode(part.InlineData.Data)
		if err != nil {
			return nil, o.imageFailed(err, start)
		}

		o.mu.Lock()
		o.image = img
		o.handle = nil
		o.mu.Unlock()
		o.record("image", "success", start)
		if err := o.transition(StateImageReady); err != nil {
			return nil, err
		}

		out := &ImageOutput{Image: img, MIMEType: part.InlineData.MimeType, Commentary: commentary}
		out.Handle, out.PersistErr = o.persist(img, jobClass)
		o.publish(Event{Type: EventImageReady, Image: out.Handle})
		return out, nil
	}

	return nil, o.imageFailed(types.NewError(types.ErrNoResult, "model response contains no image part"), start)
}

// persist 持久化失败只产生警告，不回滚 ImageReady
func (o *Orchestrator) persist(img image.Image, jobClass string) (*charimage.Handle, error) {
	if o.images == nil {
		return nil, nil
	}
	if strings.TrimSpace(jobClass) == "" {
		jobClass = character.DefaultImageJobClass
	}
	h, err := o.images.Persist(img, jobClass)
	if err != nil {
		o.logger.Warn("failed to persist character image", zap.Error(err))
		o.publish(Event{Type: EventWarning, Text: fmt.Sprintf("image not saved: %v", err)})
		return nil, err
	}
	o.mu.Lock()
	o.handle = &h
	o.mu.Unlock()
	return &h, nil
}

func (o *Orchestrator) imageFailed(err error, start time.Time) error {
	o.record("image", outcomeLabel(err), start)
	o.logger.Warn("image stage failed", zap.Error(err))
	if terr := o.transition(StateImageFailed); terr != nil {
		return terr
	}
	o.publishFailure(err)
	return err
}

// =============================================================================
// ✍️ 手动覆盖
// =============================================================================

// SetAttributes 手动设置属性与职业名，职业名为空时为 "미정"
func (o *Orchestrator) SetAttributes(str, intel, con, wis int, jobClass string) character.GenerationResult {
	if strings.TrimSpace(jobClass) == "" {
		jobClass = character.UndecidedJobClass
	}
	return o.publishManual(func(_ *character.GenerationResult) character.GenerationResult {
		return character.GenerationResult{
			Description: character.ManualDescription,
			JobClass:    jobClass,
			Stats:       character.AttributeSet{STR: str, INT: intel, CON: con, WIS: wis},
		}
	})
}

// SetJobClass 只修改职业名；没有当前结果时返回 NO_RESULT
func (o *Orchestrator) SetJobClass(jobClass string) (character.GenerationResult, error) {
	if _, ok := o.Result(); !ok {
		return character.GenerationResult{}, types.NewError(types.ErrNoResult, "no character to update").
			WithHTTPStatus(http.StatusConflict)
	}
	return o.publishManual(func(cur *character.GenerationResult) character.GenerationResult {
		next := character.GenerationResult{Description: character.JobClassChangedMessage, JobClass: jobClass}
		if cur != nil {
			next.Stats = cur.Stats
		}
		return next
	}), nil
}

// SetRange 调整属性区间并重新校验当前结果。
// 返回规范化后的区间；没有当前结果时第二个返回值为 nil。
func (o *Orchestrator) SetRange(min, max int) (character.Range, *character.GenerationResult) {
	rng := character.Range{Min: min, Max: max}.Normalize()

	o.mu.Lock()
	o.rng = rng
	hasResult := o.result != nil
	o.mu.Unlock()
	o.logger.Info("attribute range updated", zap.Int("min", rng.Min), zap.Int("max", rng.Max))

	if !hasResult {
		return rng, nil
	}
	r := o.publishManual(func(cur *character.GenerationResult) character.GenerationResult {
		next := character.GenerationResult{Description: character.RangeAdjustedDescription(rng)}
		if cur != nil {
			next.JobClass = cur.JobClass
			next.Stats = cur.Stats
		}
		if strings.TrimSpace(next.JobClass) == "" {
			next.JobClass = character.UndecidedJobClass
		}
		return next
	})
	return rng, &r
}

// ApplyExample 使用示例语料中的条目设置属性
func (o *Orchestrator) ApplyExample(exampleType string) (character.GenerationResult, error) {
	if o.catalog == nil || !o.catalog.Loaded() {
		return character.GenerationResult{}, types.NewError(types.ErrConfigurationMissing, "base data is not loaded")
	}
	ex, ok := o.catalog.Snapshot().FindExample(exampleType)
	if !ok {
		return character.GenerationResult{}, types.NewError(types.ErrNotFound,
			fmt.Sprintf("character example %q not found", exampleType)).WithHTTPStatus(http.StatusNotFound)
	}
	return o.SetAttributes(ex.Stats.STR, ex.Stats.INT, ex.Stats.CON, ex.Stats.WIS, ex.Type), nil
}

// publishManual 在锁内基于当前结果构造新结果，校验后整体发布
func (o *Orchestrator) publishManual(build func(cur *character.GenerationResult) character.GenerationResult) character.GenerationResult {
	start := time.Now()
	o.mu.Lock()
	next := build(o.result).Validated(o.rng)
	o.result = &next
	o.mu.Unlock()

	published := next
	o.publish(Event{Type: EventResultPublished, Result: &published, Source: SourceManual})
	o.record("manual", "success", start)
	return next
}

// =============================================================================
// 🔄 状态管理
// =============================================================================

func (o *Orchestrator) checkConfigured(needBaseData bool) error {
	if o.client == nil {
		return types.NewError(types.ErrConfigurationMissing, "generation client is not configured")
	}
	if kc, ok := o.client.(keyedClient); ok && !kc.HasAPIKey() {
		return types.NewError(types.ErrConfigurationMissing, "gemini api key is not configured")
	}
	if needBaseData && (o.catalog == nil || !o.catalog.Loaded()) {
		return types.NewError(types.ErrConfigurationMissing, "base data is not loaded")
	}
	return nil
}

// begin 仅在 Idle 时开始新序列
func (o *Orchestrator) begin(to State) error {
	o.mu.Lock()
	from := o.state
	if from != StateIdle {
		o.mu.Unlock()
		return types.NewError(types.ErrGenerationBusy,
			fmt.Sprintf("generation already in progress (state=%s)", from)).
			WithHTTPStatus(http.StatusConflict)
	}
	o.state = to
	o.mu.Unlock()

	o.changed(from, to)
	return nil
}

func (o *Orchestrator) transition(to State) error {
	o.mu.Lock()
	from := o.state
	if !CanTransition(from, to) {
		o.mu.Unlock()
		cause := ErrInvalidTransition{From: from, To: to}
		return types.NewError(types.ErrInvalidTransition, cause.Error()).WithCause(cause)
	}
	o.state = to
	o.mu.Unlock()

	o.changed(from, to)
	return nil
}

// finish 结束序列并回到 Idle
func (o *Orchestrator) finish() {
	o.mu.Lock()
	from := o.state
	if from == StateIdle {
		o.mu.Unlock()
		return
	}
	if !from.IsTerminal() {
		o.logger.Error("sequence ended in non-terminal state", zap.String("state", string(from)))
	}
	o.state = StateIdle
	o.mu.Unlock()

	o.changed(from, StateIdle)
}

func (o *Orchestrator) changed(from, to State) {
	o.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	if o.recorder != nil {
		o.recorder.RecordStateTransition(o.cfg.SessionID, string(from), string(to))
	}
	o.publish(Event{Type: EventStateChanged, From: from, To: to})
}

func (o *Orchestrator) publish(e Event) {
	e.SessionID = o.cfg.SessionID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	o.observers.publish(e)
}

func (o *Orchestrator) publishFailure(err error) {
	o.publish(Event{Type: EventFailed, Code: string(types.GetErrorCode(err)), Text: err.Error()})
}

func (o *Orchestrator) record(stage, outcome string, start time.Time) {
	if o.recorder != nil {
		o.recorder.RecordGeneration(stage, outcome, time.Since(start))
	}
}

// outcomeLabel 指标中的结果标签
func outcomeLabel(err error) string {
	if code := types.GetErrorCode(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}
