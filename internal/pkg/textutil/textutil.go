// Package textutil 提供 FAQ 检索相关的文本与向量工具函数。
package textutil

import (
	"math"
	"strings"
	"unicode/utf8"
)

// NormalizeL2 将向量归一化为单位长度（L2 范数为 1）。
// 归一化后内积等价于余弦相似度。零向量原样返回。
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	normalized := make([]float32, len(v))
	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

// DotProduct 计算两个向量的内积。向量长度不一致时返回 0。
func DotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// IsBlank 判断文本是否为空或仅包含空白字符。
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}
