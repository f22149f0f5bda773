package service

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	MaxAttachments      = 5
	MaxAttachmentSize   = 10 << 20
	maxFileContextChars = 20000
)

// Attachment 随提问一起上传的文件
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	URL         string
}

var allowedExtensions = regexp.MustCompile(`^\.(jpeg|jpg|png|gif|pdf|doc|docx|txt|md|rtf|html|htm)$`)

var allowedContentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/rtf",
	"text/",
}

// AcceptAttachment 扩展名和 MIME 类型都要是允许的文档或图片格式
func AcceptAttachment(name, contentType string) bool {
	if !allowedExtensions.MatchString(strings.ToLower(filepath.Ext(name))) {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

// DetectContentType 声明类型为空或为通用二进制时按内容识别
func DetectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

func isReadable(a Attachment) bool {
	ct := strings.ToLower(a.ContentType)
	return strings.Contains(ct, "text") || strings.Contains(ct, "pdf") || strings.HasSuffix(strings.ToLower(a.Name), ".md")
}

// extractPDF 解析器遇到损坏文件可能 panic
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return strings.Join(strings.Fields(string(b)), " "), nil
}

func attachmentText(a Attachment) (string, error) {
	ct := strings.ToLower(a.ContentType)
	content := string(a.Data)
	switch {
	case strings.Contains(ct, "pdf"):
		text, err := extractPDF(a.Data)
		if err != nil {
			return "", err
		}
		content = text
	case strings.Contains(ct, "html"):
		md, err := htmltomarkdown.ConvertString(content)
		if err != nil {
			return "", err
		}
		content = md
	}
	content = strings.ToValidUTF8(content, "")
	if utf8.RuneCountInString(content) > maxFileContextChars {
		content = string([]rune(content)[:maxFileContextChars]) + "\n[truncated]"
	}
	return content, nil
}

// BuildFileContext 把可读文件的内容拼进提示词，其他文件只记录文件名
func BuildFileContext(files []Attachment) string {
	var b strings.Builder
	for _, f := range files {
		if !isReadable(f) {
			fmt.Fprintf(&b, "\nFile: %s (non-text file)\n", f.Name)
			continue
		}
		content, err := attachmentText(f)
		if err != nil {
			logger.Warnf("read attachment %s error, %s", f.Name, err)
			fmt.Fprintf(&b, "\nFile: %s (non-text file)\n", f.Name)
			continue
		}
		fmt.Fprintf(&b, "\nFile: %s\nContent: %s\n", f.Name, content)
	}
	return b.String()
}
