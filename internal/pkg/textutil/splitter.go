package textutil

import (
	"strings"
	"unicode/utf8"
)

// splitSeparators 分割文本时依次尝试的边界，从段落到句子再到单词。
// 最后的空字符串表示按固定长度硬切分。
var splitSeparators = []string{"\n\n", "\n", "。", ". ", "! ", "? ", " ", ""}

// SplitIntoChunks 将文本分割成带重叠的块。
// chunkSize 和 overlap 均以 Unicode 字符数计。分割优先落在自然边界
// （段落、换行、句子、单词），只有单个单元超过 chunkSize 时才硬切分。
// 除重叠前缀外，各块按原文顺序无缝衔接，拼接可还原原文。
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if IsBlank(text) {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	units := decompose(text, chunkSize, 0)
	return mergeUnits(units, chunkSize, overlap)
}

// decompose 将文本拆分为不超过 chunkSize 的原子单元。
// 各单元保留分隔符，按顺序拼接等于原文。
func decompose(text string, chunkSize, sepIndex int) []string {
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}

	if sepIndex >= len(splitSeparators) || splitSeparators[sepIndex] == "" {
		return hardSplit(text, chunkSize)
	}

	sep := splitSeparators[sepIndex]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		// 当前分隔符不出现，降级到更细的边界
		return decompose(text, chunkSize, sepIndex+1)
	}

	var units []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) > chunkSize {
			units = append(units, decompose(part, chunkSize, sepIndex+1)...)
		} else {
			units = append(units, part)
		}
	}
	return units
}

// hardSplit 按固定字符数切分，仅用于无任何自然边界的超长单元。
func hardSplit(text string, chunkSize int) []string {
	runes := []rune(text)
	var units []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		units = append(units, string(runes[i:end]))
	}
	return units
}

// mergeUnits 将原子单元贪心合并为块，并为后续块添加重叠前缀。
func mergeUnits(units []string, chunkSize, overlap int) []string {
	var chunks []string
	var current []rune

	flush := func() {
		chunk := strings.TrimSpace(string(current))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		// 重叠部分取上一块的尾部，优先让下一块带上近邻上下文
		if overlap > 0 && len(current) > overlap {
			current = append([]rune(nil), current[len(current)-overlap:]...)
		} else {
			current = nil
		}
	}

	for _, unit := range units {
		unitRunes := []rune(unit)
		if len(current) > 0 && len(current)+len(unitRunes) > chunkSize {
			flush()
			// 重叠前缀加上该单元仍超限时放弃前缀，保证块不超 chunkSize
			if len(current)+len(unitRunes) > chunkSize {
				current = nil
			}
		}
		current = append(current, unitRunes...)
	}

	if chunk := strings.TrimSpace(string(current)); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}
