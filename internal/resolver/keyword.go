package resolver

import "strings"

// Matches 判断 text 是否包含任一关键词（不区分大小写的子串匹配）。
// 关键词列表为空时返回 false，"空列表即全部匹配"由调用方处理。
func Matches(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
