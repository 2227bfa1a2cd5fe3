package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/charforge/agent/generation"
	"github.com/BaSui01/charforge/character"
	charimage "github.com/BaSui01/charforge/llm/image"
	"github.com/BaSui01/charforge/types"
)

// =============================================================================
// 🎲 generate 命令
// =============================================================================

// stringList 可重复的字符串 flag
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ", ") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// batchItem 单条描述的生成结果，按输入顺序输出为 JSON Lines
type batchItem struct {
	Description string                      `json:"description"`
	Result      *character.GenerationResult `json:"result,omitempty"`
	ImagePath   string                      `json:"image_path,omitempty"`
	ImageError  string                      `json:"image_error,omitempty"`
	Error       string                      `json:"error,omitempty"`
	Code        types.ErrorCode             `json:"code,omitempty"`
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "File with one description per line")
	concurrency := fs.Int("concurrency", 4, "Parallel generations")
	images := fs.Bool("images", false, "Also generate portraits")
	var descriptions stringList
	fs.Var(&descriptions, "d", "Character description (repeatable)")
	_ = fs.Parse(args)

	if *file != "" {
		lines, err := readDescriptions(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read descriptions: %v\n", err)
			os.Exit(1)
		}
		descriptions = append(descriptions, lines...)
	}
	if len(descriptions) == 0 {
		fmt.Fprintln(os.Stderr, "No descriptions given (use -d or --file)")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	client, err := newGeminiClient(cfg.Gemini, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	catalog := loadCatalog(cfg.Generation, logger)

	tmpl := sessionTemplate(cfg).Generation
	tmpl.ImageEnabled = *images

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items := generateBatch(ctx, client, catalog, tmpl, descriptions, *concurrency, logger,
		generation.WithImageStore(charimage.NewMaterializer(cfg.Storage.ImageDir, logger)))

	failed, err := writeBatch(os.Stdout, items)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write results: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(2)
	}
}

// readDescriptions 读取非空行
func readDescriptions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

// generateBatch 每条描述使用独立编排器并发生成，至多 concurrency 个同时运行。
// 单条失败不影响其余条目，结果顺序与输入一致。
func generateBatch(ctx context.Context, client generation.Client, catalog *character.Catalog, tmpl generation.Config,
	descriptions []string, concurrency int, logger *zap.Logger, opts ...generation.Option) []batchItem {
	if concurrency <= 0 {
		concurrency = 1
	}
	items := make([]batchItem, len(descriptions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, desc := range descriptions {
		g.Go(func() error {
			cfg := tmpl
			cfg.SessionID = uuid.NewString()
			o := generation.New(cfg, client, catalog, logger, opts...)

			item := batchItem{Description: desc}
			outcome, err := o.Generate(gctx, desc)
			if err != nil {
				item.Error = err.Error()
				item.Code = types.GetErrorCode(err)
			} else {
				item.Result = outcome.Result
				if outcome.ImageErr != nil {
					item.ImageError = outcome.ImageErr.Error()
				}
				if outcome.Image != nil && outcome.Image.Handle != nil {
					item.ImagePath = outcome.Image.Handle.Path
				}
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// writeBatch 输出 JSON Lines，返回失败条目数
func writeBatch(w io.Writer, items []batchItem) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	failed := 0
	for _, item := range items {
		if item.Error != "" {
			failed++
		}
		if err := enc.Encode(item); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
