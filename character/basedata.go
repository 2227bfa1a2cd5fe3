package character

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AttributeDefinition 属性定义，加载后不可变
type AttributeDefinition struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
}

// CharacterExample few-shot 示例条目
type CharacterExample struct {
	Type        string       `json:"type" yaml:"type"`
	Description string       `json:"description" yaml:"description"`
	Stats       AttributeSet `json:"stats" yaml:"stats"`
}

// DefinitionTable 按加载顺序保存的属性定义表，键唯一
type DefinitionTable struct {
	order []string
	byKey map[string]AttributeDefinition
}

// NewDefinitionTable 创建定义表；重复键保留第一次出现的位置，后者覆盖内容。
func NewDefinitionTable(defs []AttributeDefinition) *DefinitionTable {
	t := &DefinitionTable{byKey: make(map[string]AttributeDefinition, len(defs))}
	for _, d := range defs {
		if _, exists := t.byKey[d.Key]; !exists {
			t.order = append(t.order, d.Key)
		}
		t.byKey[d.Key] = d
	}
	return t
}

// Get 按键查找定义
func (t *DefinitionTable) Get(key string) (AttributeDefinition, bool) {
	if t == nil {
		return AttributeDefinition{}, false
	}
	d, ok := t.byKey[key]
	return d, ok
}

// Len 返回定义数量
func (t *DefinitionTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// All 按表顺序返回定义副本
func (t *DefinitionTable) All() []AttributeDefinition {
	if t == nil {
		return nil
	}
	out := make([]AttributeDefinition, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.byKey[k])
	}
	return out
}

// BaseData 一次加载得到的定义表与示例语料快照
type BaseData struct {
	Definitions *DefinitionTable
	Examples    []CharacterExample
}

// FindExample 按类型查找示例
func (b *BaseData) FindExample(exampleType string) (CharacterExample, bool) {
	if b == nil {
		return CharacterExample{}, false
	}
	for _, ex := range b.Examples {
		if ex.Type == exampleType {
			return ex, true
		}
	}
	return CharacterExample{}, false
}

// RandomExample 随机返回一个示例
func (b *BaseData) RandomExample() (CharacterExample, bool) {
	if b == nil || len(b.Examples) == 0 {
		return CharacterExample{}, false
	}
	return b.Examples[rand.IntN(len(b.Examples))], true
}

// =============================================================================
// 📂 文件格式
// =============================================================================

type baseDataFile struct {
	StatBase          []statBaseEntry    `json:"statBase" yaml:"statBase"`
	CharacterExamples []CharacterExample `json:"characterExamples" yaml:"characterExamples"`
}

type statBaseEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value struct {
		Name        string `json:"name" yaml:"name"`
		Description string `json:"description" yaml:"description"`
		Icon        string `json:"icon" yaml:"icon"`
	} `json:"value" yaml:"value"`
}

// ParseBaseData 解析基础数据；format 为 "json" 或 "yaml"。
func ParseBaseData(data []byte, format string) (*BaseData, error) {
	var file baseDataFile
	switch format {
	case "json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse base data json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse base data yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported base data format: %s", format)
	}

	defs := make([]AttributeDefinition, 0, len(file.StatBase))
	for _, e := range file.StatBase {
		if e.Key == "" {
			return nil, fmt.Errorf("stat definition without key")
		}
		defs = append(defs, AttributeDefinition{
			Key:         e.Key,
			Name:        e.Value.Name,
			Description: e.Value.Description,
			Icon:        e.Value.Icon,
		})
	}

	examples := make([]CharacterExample, len(file.CharacterExamples))
	copy(examples, file.CharacterExamples)

	return &BaseData{
		Definitions: NewDefinitionTable(defs),
		Examples:    examples,
	}, nil
}

// LoadBaseData 从文件加载基础数据，按扩展名选择格式
func LoadBaseData(path string) (*BaseData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read base data: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "json"
	}
	return ParseBaseData(data, format)
}

// =============================================================================
// 📚 Catalog
// =============================================================================

// Catalog 持有当前基础数据快照；Reload 整体替换引用，读者不会看到半更新状态。
type Catalog struct {
	path    string
	current atomic.Pointer[BaseData]
	logger  *zap.Logger
}

// NewCatalog 创建 Catalog，path 为空时只能通过 Replace 设置数据
func NewCatalog(path string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		path:   path,
		logger: logger.With(zap.String("component", "catalog")),
	}
}

// Path 返回基础数据文件路径
func (c *Catalog) Path() string { return c.path }

// Snapshot 返回当前快照，未加载时为 nil
func (c *Catalog) Snapshot() *BaseData {
	return c.current.Load()
}

// Loaded 是否已加载基础数据
func (c *Catalog) Loaded() bool {
	return c.current.Load() != nil
}

// Replace 原子替换快照
func (c *Catalog) Replace(data *BaseData) {
	c.current.Store(data)
}

// Reload 重新读取文件；失败时保留旧快照。
func (c *Catalog) Reload() error {
	if c.path == "" {
		return fmt.Errorf("base data path not configured")
	}
	data, err := LoadBaseData(c.path)
	if err != nil {
		c.logger.Error("base data reload failed", zap.String("path", c.path), zap.Error(err))
		return err
	}
	c.current.Store(data)
	c.logger.Info("base data loaded",
		zap.String("path", c.path),
		zap.Int("definitions", data.Definitions.Len()),
		zap.Int("examples", len(data.Examples)),
	)
	return nil
}
