package prompt

import (
	"fmt"
	"strings"

	"github.com/BaSui01/charforge/character"
)

// StyleDirective 附加在图像提示词末尾的固定风格约束
const StyleDirective = ". Pixel art style, 16-bit retro gaming style, pixelated character sprite, " +
	"full body standing pose, medieval fantasy setting, RPG character sprite, detailed pixel work, retro game art."

// TranslationTable 职业名到英文的翻译表
type TranslationTable map[string]string

// DefaultTranslations 内置职业名翻译
func DefaultTranslations() TranslationTable {
	return TranslationTable{
		"전사":      "Warrior",
		"마법사":     "Mage",
		"도적":      "Rogue",
		"궁수":      "Archer",
		"팔라딘":     "Paladin",
		"드루이드":    "Druid",
		"바드":      "Bard",
		"야만용사":    "Barbarian",
		"무극의 궤":   "Ultimate Weapon Master",
		"화염의 현자":  "Flame Sage",
		"강철의 수호자": "Steel Guardian",
		"그림자 무용가": "Shadow Dancer",
		"얼음의 여제":  "Ice Empress",
		"대지의 파수꾼": "Earth Warden",
		"번개의 기사":  "Lightning Knight",
		"바람의 유랑자": "Wind Wanderer",
	}
}

// 子串启发式，按顺序匹配
var archetypeHints = []struct {
	keywords  []string
	archetype string
}{
	{[]string{"마법", "술사"}, "Mage"},
	{[]string{"전사", "기사"}, "Warrior"},
	{[]string{"도적", "암살"}, "Rogue"},
}

// Translate 翻译职业名：精确匹配 → 子串启发式 → 通用包装。
func (t TranslationTable) Translate(jobClass string) string {
	if en, ok := t[jobClass]; ok {
		return en
	}
	for _, h := range archetypeHints {
		for _, kw := range h.keywords {
			if strings.Contains(jobClass, kw) {
				return fmt.Sprintf("%s (Fantasy %s)", jobClass, h.archetype)
			}
		}
	}
	return fmt.Sprintf("%s (Fantasy Character)", jobClass)
}

// BuildImagePrompt 构建图像生成提示词，jobClass 为空时使用默认职业
func BuildImagePrompt(description, jobClass string, table TranslationTable) string {
	if strings.TrimSpace(jobClass) == "" {
		jobClass = character.DefaultImageJobClass
	}
	if table == nil {
		table = DefaultTranslations()
	}

	var sb strings.Builder
	sb.WriteString("Create a medieval fantasy character in pixel art style, full body sprite: ")
	sb.WriteString(NormalizeDescription(description))
	sb.WriteString(", Job class: ")
	sb.WriteString(table.Translate(jobClass))
	sb.WriteString(StyleDirective)
	return sb.String()
}
