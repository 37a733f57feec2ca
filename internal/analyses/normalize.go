package analyses

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxGapItems = 6

// hardGapMarkers force a gap entry to be kept: they signal an actual
// deficiency even when affirmative wording appears in the same sentence
// ("未明确说明时间" carries both).
var hardGapMarkers = []string{
	"缺", "未", "没有", "无", "不足", "模糊", "不清", "遗漏", "需补充", "需要补充",
}

// affirmativeMarkers signal the model leaked a positive judgment into what
// must be a deficiency list ("时间已明确"). Such entries are dropped unless a
// hard marker rescues them.
var affirmativeMarkers = []string{
	"已", "明确", "具体", "清晰", "完整", "符合", "具备", "满足", "齐备", "合理",
}

// AllSatisfiedSentinel is the one gap entry allowed to stand alone when the
// wish covers every criterion.
const AllSatisfiedSentinel = "六项要素齐备，无明显缺漏"

// extractJSONSpan returns the first balanced {...} span in the text,
// tolerating prose and code fences around it.
func extractJSONSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeLoose parses the model text into a generic map, trying the first
// balanced JSON span before falling back to the entire text.
func decodeLoose(raw string) (map[string]any, error) {
	if span, ok := extractJSONSpan(raw); ok {
		var out map[string]any
		if err := json.Unmarshal([]byte(span), &out); err == nil {
			return out, nil
		}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return out, nil
}

// parseDiagnosis normalizes the diagnosis payload. Parse failure always
// propagates; no path degrades to the raw text.
func parseDiagnosis(raw string, wishText, userDeity string) (Diagnosis, error) {
	top, err := decodeLoose(raw)
	if err != nil {
		return Diagnosis{}, err
	}

	d := Diagnosis{
		Gaps:           filterGaps(coerceStringSlice(top["gaps"])),
		Case:           coerceString(top["case"]),
		Tip:            coerceString(top["tip"]),
		SuggestedDeity: coerceString(top["suggested_deity"]),
	}
	if len(d.Gaps) == 0 && strings.TrimSpace(d.Case) == "" {
		d.Case = CaseQualified
	}
	if strings.TrimSpace(d.SuggestedDeity) == "" {
		if strings.TrimSpace(userDeity) != "" {
			d.SuggestedDeity = strings.TrimSpace(userDeity)
		} else {
			d.SuggestedDeity = suggestDeity(wishText)
		}
	}
	return d, nil
}

// parseFullResult normalizes the optimization payload.
func parseFullResult(raw string) (FullResult, error) {
	top, err := decodeLoose(raw)
	if err != nil {
		return FullResult{}, err
	}
	out := FullResult{
		OptimizedText: coerceString(top["optimized_text"]),
		Suggestion:    coerceStringMap(top["suggestion"]),
		Steps:         coerceStringSlice(top["steps"]),
		Warnings:      coerceStringSlice(top["warnings"]),
	}
	if strings.TrimSpace(out.OptimizedText) == "" {
		return FullResult{}, fmt.Errorf("%w: optimized_text missing", ErrParse)
	}
	return out, nil
}

// filterGaps trims, drops empties, de-duplicates preserving first occurrence,
// drops affirmative-judgment leakage, and caps the list. Running it over its
// own output yields the same list.
func filterGaps(gaps []string) []string {
	seen := make(map[string]struct{}, len(gaps))
	out := make([]string, 0, len(gaps))
	for _, g := range gaps {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		if g != AllSatisfiedSentinel && isAffirmative(g) {
			continue
		}
		out = append(out, g)
	}
	// The sentinel only stands alone; among real gaps it is noise.
	if len(out) > 1 {
		kept := out[:0]
		for _, g := range out {
			if g != AllSatisfiedSentinel {
				kept = append(kept, g)
			}
		}
		out = kept
	}
	if len(out) > maxGapItems {
		out = out[:maxGapItems]
	}
	return out
}

func isAffirmative(gap string) bool {
	for _, m := range hardGapMarkers {
		if strings.Contains(gap, m) {
			return false
		}
	}
	for _, m := range affirmativeMarkers {
		if strings.Contains(gap, m) {
			return true
		}
	}
	return false
}

// suggestDeity picks a domain-appropriate default when neither the user nor
// the model named one.
func suggestDeity(wishText string) string {
	switch {
	case containsAny(wishText, "财", "钱", "富", "薪", "赚", "生意", "收入"):
		return "财神"
	case containsAny(wishText, "考", "学业", "升学", "论文", "成绩", "读书"):
		return "文昌帝君"
	case containsAny(wishText, "病", "健康", "康复", "手术", "平安"):
		return "药师佛"
	case containsAny(wishText, "姻缘", "恋爱", "脱单", "结婚", "对象"):
		return "月老"
	default:
		return "观音菩萨"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func coerceString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func coerceStringSlice(v any) []string {
	switch raw := v.(type) {
	case []string:
		return raw
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func coerceStringMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(raw))
	for k, item := range raw {
		if s, ok := item.(string); ok {
			out[k] = s
		}
	}
	return out
}
