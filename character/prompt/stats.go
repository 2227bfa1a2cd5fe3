package prompt

import (
	"fmt"
	"strings"

	"github.com/BaSui01/charforge/character"
)

// MaxExamples few-shot 示例的最大数量
const MaxExamples = 4

// builtinDefinitions 定义表为空时使用的内置属性说明
const builtinDefinitions = "STR (힘): 물리적 힘과 근력\n" +
	"INT (지능): 지능과 마법 능력\n" +
	"CON (체력): 체력과 생명력\n" +
	"WIS (지혜): 지혜와 정신력\n"

// ResponseFormat 要求模型输出的 JSON 形状
const ResponseFormat = `{"description": "캐릭터 상세 설명", "jobClass": "적합한 직업명", "stats": {"STR": 15, "INT": 12, "CON": 14, "WIS": 10}}`

var jobClassGuide = []string{
	"직업명은 다음 조건을 만족하는 판타지적이고 유니크한 이름으로 생성해주세요:",
	"• 단순한 '전사', '마법사' 대신 창의적이고 독특한 이름 사용",
	"• 캐릭터의 특성과 능력을 반영하는 표현적인 직업명",
	"• 판타지 세계관에 어울리는 웅장하고 멋진 칭호",
	"• 예시: '화염술사' → '불꽃의 현자', '전사' → '강철의 수호자', '도적' → '그림자 무용가'",
	"• 직업명은 한국어로 작성하되, 2-6글자의 적절한 길이로 제한",
	"• 캐릭터 설명의 핵심 키워드를 직업명에 반영하여 창조해주세요.",
}

// NormalizeDescription 去除首尾空白，空输入回退为默认描述
func NormalizeDescription(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return character.DefaultDescription
	}
	return description
}

// BuildStatsPrompt 构建属性生成提示词。
//
// 输出依次包含：角色描述、属性定义块（按定义表顺序）、
// 至多 MaxExamples 个示例、响应格式模板、数值区间说明和职业名风格指南。
// 相同输入总是得到相同输出。
func BuildStatsPrompt(description string, defs *character.DefinitionTable, examples []character.CharacterExample, minValue, maxValue int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "캐릭터 설명: %s\n\n", NormalizeDescription(description))
	sb.WriteString("이 캐릭터에 대한 기본 스텟과 판타지적이고 유니크한 직업명을 JSON 형식으로 생성해주세요.\n\n")

	sb.WriteString("=== 스텟 정의 ===\n")
	if defs.Len() > 0 {
		for _, d := range defs.All() {
			fmt.Fprintf(&sb, "%s %s (%s): %s\n", d.Icon, d.Key, d.Name, d.Description)
		}
	} else {
		sb.WriteString(builtinDefinitions)
	}

	sb.WriteString("\n=== 캐릭터 예시 ===\n")
	for i, ex := range examples {
		if i >= MaxExamples {
			break
		}
		fmt.Fprintf(&sb, "%s: %s - STR:%d INT:%d CON:%d WIS:%d\n",
			ex.Type, ex.Description, ex.Stats.STR, ex.Stats.INT, ex.Stats.CON, ex.Stats.WIS)
	}

	fmt.Fprintf(&sb, "\n응답 형식: %s", ResponseFormat)
	fmt.Fprintf(&sb, "\n각 스텟은 %d-%d 범위로 설정해주세요.", minValue, maxValue)

	sb.WriteString("\n\n=== 직업명 생성 가이드 ===")
	for _, line := range jobClassGuide {
		sb.WriteString("\n")
		sb.WriteString(line)
	}

	return sb.String()
}
