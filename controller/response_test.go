package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/service"
)

func TestServiceErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err     error
		status  int
		message string
	}{
		{&service.InputError{Field: "title", Message: "Title and due date are required"}, http.StatusBadRequest, "Title and due date are required"},
		{&service.NotFoundError{Entity: "assignment", ID: "a1"}, http.StatusNotFound, "Assignment not found"},
		{fmt.Errorf("load owner: %w", &service.NotFoundError{Entity: "user", ID: "u1"}), http.StatusNotFound, "User not found"},
		{fmt.Errorf("user lookup: %w", service.ErrNotFound), http.StatusNotFound, "Not found"},
		{fmt.Errorf("assignment-like text: %w", service.ErrNotFound), http.StatusNotFound, "Not found"},
		{fmt.Errorf("invalid credentials: %w", service.ErrUnauthorized), http.StatusUnauthorized, "Invalid credentials"},
		{fmt.Errorf("user exists: %w", service.ErrConflict), http.StatusConflict, "Resource already exists"},
		{errors.New("disk full"), http.StatusInternalServerError, "Something failed"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		serviceError(c, tc.err, "Something failed")

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		var env map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, false, env["success"])
		assert.Equal(t, tc.message, env["message"])
	}

	// 500 返回原始错误信息
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	serviceError(c, errors.New("disk full"), "Something failed")
	assert.Contains(t, w.Body.String(), `"errors":"disk full"`)
}

func TestParseDueDate(t *testing.T) {
	for _, raw := range []string{"2025-05-01", "2025-05-01T09:30", "2025-05-01T09:30:00Z", "2025-05-01T11:30:00+02:00"} {
		d, err := parseDueDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, time.May, d.Month())
		assert.Equal(t, time.UTC, d.Location())
	}
	_, err := parseDueDate("soon")
	assert.Error(t, err)
}
