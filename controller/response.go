package controller

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"studyhub/platform"
	"studyhub/service"
)

var logger = platform.Logger

// FieldError 校验失败的字段
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string, errs interface{}) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Errors: errs})
}

var registerTagName sync.Once

// RegisterValidation 让校验错误使用 json 字段名
func RegisterValidation() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}

func bindingErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	}
	return fe.Field() + " is invalid"
}

// badRequest 请求体绑定失败
func badRequest(c *gin.Context, err error) {
	logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
	fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
}

// serviceError 把 service 层的哨兵错误映射成 HTTP 状态码，其余为 500
func serviceError(c *gin.Context, err error, fallback string) {
	requestID := c.GetString("requestId")

	var inputErr *service.InputError
	var notFoundErr *service.NotFoundError
	switch {
	case errors.As(err, &inputErr):
		logger.Warnf("[%s] %s", requestID, err)
		fail(c, http.StatusBadRequest, inputErr.Message, []FieldError{{Field: inputErr.Field, Message: inputErr.Message}})
	case errors.Is(err, service.ErrInvalidInput):
		logger.Warnf("[%s] %s", requestID, err)
		fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &notFoundErr):
		logger.Warnf("[%s] %s", requestID, err)
		fail(c, http.StatusNotFound, notFoundMessage(notFoundErr.Entity), nil)
	case errors.Is(err, service.ErrNotFound):
		logger.Warnf("[%s] %s", requestID, err)
		fail(c, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, service.ErrUnauthorized):
		logger.Warnf("[%s] %s", requestID, err)
		fail(c, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, service.ErrConflict):
		logger.Warnf("[%s] %s", requestID, err)
		fail(c, http.StatusConflict, "Resource already exists", nil)
	default:
		logger.Errorf("[%s] %s: %s", requestID, fallback, err)
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}

// notFoundMessage "assignment" -> "Assignment not found"
func notFoundMessage(entity string) string {
	if entity == "" {
		return "Not found"
	}
	return strings.ToUpper(entity[:1]) + entity[1:] + " not found"
}
