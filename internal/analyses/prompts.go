package analyses

import (
	"fmt"
	"strings"
)

// The six criteria a well-formed wish should cover: a time frame, a
// quantified goal, a lawful boundary, the wisher's own action, who is
// wishing, and a vow of return.
const diagnosisSystemPrompt = `你是一位许愿文书顾问。用户会提交一段许愿文本，你需要按以下六项要素逐一检查：
1. 时间范围（何时之前实现）
2. 量化目标（可衡量的具体结果）
3. 合规边界（合法合规、不损人利己）
4. 自身行动（许愿人自己会做什么）
5. 许愿人信息（谁在许愿、基本处境）
6. 还愿承诺（事成之后如何回向）

只输出一个 JSON 对象，不要输出其他文字，字段如下：
{"gaps": ["每条指出一项缺失的要素，一句话"], "case": "一个简短的示例故事", "tip": "一句改进建议", "suggested_deity": "适合此愿望的神明"}

gaps 只收缺失项。若六项要素齐备，gaps 返回空数组，case 返回："` + CaseQualified + `"`

// CaseQualified is the canonical illustrative case for a wish that already
// covers all six criteria.
const CaseQualified = "从前有位香客许愿时把时限、目标、边界、行动、身份、还愿一一说清，所求之事不出一年便成了。"

const optimizeSystemPrompt = `你是一位许愿文书顾问。请将用户的愿望改写为一段要素齐备、语气诚恳的许愿文。
只输出一个 JSON 对象，不要输出其他文字，字段如下：
{"optimized_text": "改写后的完整许愿文", "suggestion": {"time": "时间建议", "goal": "目标建议", "action": "行动建议", "vow": "还愿建议"}, "steps": ["许愿后应做的事，逐条列出"], "warnings": ["注意事项"]}`

func buildDiagnosisUser(wishText, deity string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "愿望：%s", strings.TrimSpace(wishText))
	if strings.TrimSpace(deity) != "" {
		fmt.Fprintf(&b, "\n许愿对象：%s", strings.TrimSpace(deity))
	}
	return b.String()
}

func buildOptimizeUser(a Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "原始愿望：%s", strings.TrimSpace(a.WishText))
	deity := a.Deity
	if strings.TrimSpace(deity) == "" {
		deity = a.Diagnosis.SuggestedDeity
	}
	if strings.TrimSpace(deity) != "" {
		fmt.Fprintf(&b, "\n许愿对象：%s", strings.TrimSpace(deity))
	}
	if len(a.Diagnosis.Gaps) > 0 {
		fmt.Fprintf(&b, "\n诊断发现的缺失：%s", strings.Join(a.Diagnosis.Gaps, "；"))
	}
	return b.String()
}
