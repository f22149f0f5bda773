package service

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptAttachment(t *testing.T) {
	cases := []struct {
		name, contentType string
		want              bool
	}{
		{"notes.txt", "text/plain; charset=utf-8", true},
		{"README.md", "text/markdown", true},
		{"scan.PDF", "application/pdf", true},
		{"photo.jpg", "image/jpeg", true},
		{"page.html", "text/html", true},
		{"essay.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"script.exe", "application/octet-stream", false},
		{"notes.txt", "application/x-msdownload", false},
		{"archive.zip", "application/zip", false},
		{"noext", "text/plain", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AcceptAttachment(tc.name, tc.contentType), "%s (%s)", tc.name, tc.contentType)
	}
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "text/plain", DetectContentType("text/plain", []byte{0x00}))
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	assert.Equal(t, "image/png", DetectContentType("", png))
	assert.True(t, strings.HasPrefix(DetectContentType("application/octet-stream", []byte("plain words")), "text/plain"))
}

func TestBuildFileContext(t *testing.T) {
	ctx := BuildFileContext([]Attachment{
		{Name: "page.html", ContentType: "text/html", Data: []byte("<h1>Title</h1><p>Body <strong>bold</strong></p>")},
		{Name: "notes.md", ContentType: "application/octet-stream", Data: []byte("# Notes")},
		{Name: "photo.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	})

	assert.Contains(t, ctx, "\nFile: page.html\nContent: # Title")
	assert.Contains(t, ctx, "**bold**")
	assert.Contains(t, ctx, "\nFile: notes.md\nContent: # Notes\n")
	assert.Contains(t, ctx, "\nFile: photo.jpg (non-text file)\n")
	assert.Empty(t, BuildFileContext(nil))
}

func TestBuildFileContextTruncatesLongFiles(t *testing.T) {
	long := strings.Repeat("a", maxFileContextChars+50)
	ctx := BuildFileContext([]Attachment{{Name: "big.txt", ContentType: "text/plain", Data: []byte(long)}})

	assert.Contains(t, ctx, "\n[truncated]")
	assert.Less(t, len(ctx), maxFileContextChars+100)
}

// buildPDF 生成单页 PDF，页面内容流使用 FlateDecode 压缩
func buildPDF(t *testing.T, sentence string) []byte {
	t.Helper()
	var stream bytes.Buffer
	zw := zlib.NewWriter(&stream)
	_, err := fmt.Fprintf(zw, "BT /F1 12 Tf 72 720 Td (%s) Tj ET", sentence)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d /Filter /FlateDecode >>\nstream\n%s\nendstream", stream.Len(), stream.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

func TestBuildFileContextExtractsPDFText(t *testing.T) {
	data := buildPDF(t, "Thesis must cite three sources")
	ctx := BuildFileContext([]Attachment{{Name: "brief.pdf", ContentType: "application/pdf", Data: data}})

	assert.Contains(t, ctx, "\nFile: brief.pdf\nContent: ")
	assert.Contains(t, ctx, "Thesis must cite three sources")
	assert.NotContains(t, ctx, "%PDF-1.4")
	assert.NotContains(t, ctx, "FlateDecode")
}

func TestBuildFileContextUnreadablePDF(t *testing.T) {
	ctx := BuildFileContext([]Attachment{{Name: "broken.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 not really")}})

	assert.Equal(t, "\nFile: broken.pdf (non-text file)\n", ctx)
}
