// Package docreader 提供商家文档的文本抽取。
// 支持 PDF 与纯文本（txt/md），按文件扩展名分发。
package docreader

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Extractor 定义单一格式的文本抽取接口。
type Extractor interface {
	// Extract 从内容中抽取纯文本。
	Extract(data []byte) (string, error)

	// Extensions 返回支持的文件扩展名（小写，含点）。
	Extensions() []string
}

// Registry 按扩展名分发的抽取器集合。
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry 创建带默认抽取器（PDF、纯文本）的注册表。
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(&PDFExtractor{})
	r.Register(&PlainTextExtractor{})
	return r
}

// Register 注册抽取器。
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.extractors[strings.ToLower(ext)] = e
	}
}

// Supported 判断文件名是否有对应的抽取器。
func (r *Registry) Supported(filename string) bool {
	_, ok := r.extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract 根据文件名选择抽取器并抽取文本。
func (r *Registry) Extract(filename string, reader io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, ok := r.extractors[ext]
	if !ok {
		return "", fmt.Errorf("docreader: unsupported file type %q", ext)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("docreader: read %s: %w", filename, err)
	}

	text, err := extractor.Extract(data)
	if err != nil {
		return "", fmt.Errorf("docreader: extract %s: %w", filename, err)
	}
	return text, nil
}

// PlainTextExtractor 纯文本抽取器。
type PlainTextExtractor struct{}

var _ Extractor = (*PlainTextExtractor)(nil)

func (*PlainTextExtractor) Extensions() []string {
	return []string{".txt", ".md"}
}

func (*PlainTextExtractor) Extract(data []byte) (string, error) {
	// 去掉 UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return string(data), nil
}
