package controller

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"studyhub/service"
)

// AssistantController AI 作业助手
type AssistantController struct {
	assistant *service.AssistantService
}

func NewAssistantController(assistant *service.AssistantService) *AssistantController {
	return &AssistantController{assistant: assistant}
}

type generateInput struct {
	AssignmentID string `json:"assignmentId" form:"assignmentId"`
	Query        string `json:"query" form:"query"`
}

// Generate 支持 JSON 和 multipart/form-data（附带文件）两种请求
func (ctrl *AssistantController) Generate(c *gin.Context) {
	requestID := c.GetString("requestId")
	logger.Infof("[%s] Handling AI generate request", requestID)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(service.MaxAttachments*service.MaxAttachmentSize+(1<<20)))

	var input generateInput
	var err error
	multipartRequest := strings.HasPrefix(c.ContentType(), "multipart/")
	if multipartRequest {
		err = c.ShouldBind(&input)
	} else {
		err = c.ShouldBindJSON(&input)
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	if strings.TrimSpace(input.AssignmentID) == "" || strings.TrimSpace(input.Query) == "" {
		logger.Warnf("[%s] missing assignmentId or query", requestID)
		fail(c, http.StatusBadRequest, "Assignment ID and query are required", missingFields(input))
		return
	}

	var attachments []service.Attachment
	if multipartRequest {
		attachments, err = ctrl.attachments(c)
		if err != nil {
			logger.Warnf("[%s] reject upload, %s", requestID, err)
			fail(c, http.StatusBadRequest, err.Error(), []FieldError{{Field: "files", Message: err.Error()}})
			return
		}
	}

	reply, err := ctrl.assistant.GenerateResponse(c.Request.Context(), service.GenerateRequest{
		RequestID:    requestID,
		AssignmentID: input.AssignmentID,
		UserID:       c.GetString("userId"),
		Query:        input.Query,
		Attachments:  attachments,
	})
	if err != nil {
		serviceError(c, err, "Error generating AI response")
		return
	}

	logger.Infof("[%s] AI response generated for assignment %s", requestID, input.AssignmentID)
	success(c, http.StatusOK, "AI response generated successfully", reply)
}

func missingFields(input generateInput) []FieldError {
	var out []FieldError
	if strings.TrimSpace(input.AssignmentID) == "" {
		out = append(out, FieldError{Field: "assignmentId", Message: "assignmentId is required"})
	}
	if strings.TrimSpace(input.Query) == "" {
		out = append(out, FieldError{Field: "query", Message: "query is required"})
	}
	return out
}

// attachments 读取 files / files[] 字段，校验数量、大小和类型
func (ctrl *AssistantController) attachments(c *gin.Context) ([]service.Attachment, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	headers := make([]*multipart.FileHeader, 0, len(form.File["files"])+len(form.File["files[]"]))
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)
	if len(headers) > service.MaxAttachments {
		return nil, fmt.Errorf("at most %d files are allowed", service.MaxAttachments)
	}

	attachments := make([]service.Attachment, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > service.MaxAttachmentSize {
			return nil, fmt.Errorf("file %s exceeds the 10MB limit", fh.Filename)
		}
		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		contentType := service.DetectContentType(fh.Header.Get("Content-Type"), data)
		if !service.AcceptAttachment(fh.Filename, contentType) {
			return nil, fmt.Errorf("file %s: only document and image files are allowed", fh.Filename)
		}
		attachments = append(attachments, service.Attachment{
			Name:        fh.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}
	return attachments, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, service.MaxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	if len(data) > service.MaxAttachmentSize {
		return nil, fmt.Errorf("file %s exceeds the 10MB limit", fh.Filename)
	}
	return data, nil
}

type historyMessage struct {
	Text      string    `json:"text"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	HTML      string    `json:"html,omitempty"`
}

// History ?format=html 时额外返回渲染后的 HTML
func (ctrl *AssistantController) History(c *gin.Context) {
	requestID := c.GetString("requestId")
	messages, err := ctrl.assistant.GetConversationHistory(c.Request.Context(), requestID, c.Param("assignmentId"), c.GetString("userId"))
	if err != nil {
		serviceError(c, err, "Error fetching conversation history")
		return
	}

	renderHTML := c.Query("format") == "html"
	out := make([]historyMessage, 0, len(messages))
	for _, m := range messages {
		item := historyMessage{Text: m.Text, Role: m.Role, Timestamp: m.Timestamp}
		if renderHTML {
			html, err := service.RenderMarkdown(m.Text)
			if err != nil {
				logger.Warnf("[%s] render message %s error, %s", requestID, m.ID, err)
			} else {
				item.HTML = html
			}
		}
		out = append(out, item)
	}
	success(c, http.StatusOK, "Conversation history retrieved successfully", out)
}
