package docreader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySupported(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Supported("faq.pdf"))
	assert.True(t, r.Supported("FAQ.PDF"))
	assert.True(t, r.Supported("notes.txt"))
	assert.True(t, r.Supported("readme.md"))
	assert.False(t, r.Supported("image.png"))
	assert.False(t, r.Supported("noext"))
}

func TestExtractPlainText(t *testing.T) {
	r := NewRegistry()

	text, err := r.Extract("faq.txt", strings.NewReader("营业时间 9:00-18:00"))
	require.NoError(t, err)
	assert.Equal(t, "营业时间 9:00-18:00", text)
}

func TestExtractStripsBOM(t *testing.T) {
	r := NewRegistry()

	text, err := r.Extract("faq.txt", strings.NewReader("\xEF\xBB\xBFhello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestExtractUnsupportedType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract("photo.jpg", strings.NewReader("binary"))
	assert.Error(t, err)
}

func TestExtractInvalidPDF(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract("broken.pdf", strings.NewReader("not a pdf at all"))
	assert.Error(t, err)
}
