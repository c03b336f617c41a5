package docreader

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor PDF 文本抽取器。
type PDFExtractor struct{}

var _ Extractor = (*PDFExtractor)(nil)

func (*PDFExtractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract 逐页抽取 PDF 中的纯文本，页与页之间以换行分隔。
func (*PDFExtractor) Extract(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// 单页解析失败不中断整份文档
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}

	return b.String(), nil
}

// ExtractReader 从 io.Reader 抽取 PDF 文本的便捷方法。
func (e *PDFExtractor) ExtractReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return e.Extract(data)
}
