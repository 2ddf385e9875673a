package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the envelope every endpoint responds with.
type Body struct {
	StatusCode int    `json:"status_code"`
	Msg        string `json:"msg"`
	Data       any    `json:"data"`
	RequestID  string `json:"request_id,omitempty"`
}

// PageData wraps paginated list payloads.
type PageData struct {
	List     any   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// Success responds with the payload and code 0.
func Success(c *gin.Context, data any) {
	body := Body{
		StatusCode: CodeOK,
		Msg:        "ok",
		Data:       data,
	}
	attachRequestID(c, &body)
	c.JSON(http.StatusOK, body)
}

// SuccessWithMsg responds with a custom message.
func SuccessWithMsg(c *gin.Context, msg string, data any) {
	body := Body{
		StatusCode: CodeOK,
		Msg:        msg,
		Data:       data,
	}
	attachRequestID(c, &body)
	c.JSON(http.StatusOK, body)
}

// SuccessWithPage responds with a paginated list payload.
func SuccessWithPage(c *gin.Context, list any, total int64, page, pageSize int) {
	Success(c, PageData{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Error responds with a business code and its matching HTTP status.
func Error(c *gin.Context, code int, msg string) {
	body := Body{
		StatusCode: code,
		Msg:        msg,
		Data:       nil,
	}
	attachRequestID(c, &body)
	c.JSON(httpStatus(code), body)
}

// ErrorWithStatus responds with an explicit HTTP status, for the rare
// endpoint whose transport status diverges from the business code.
func ErrorWithStatus(c *gin.Context, httpCode, code int, msg string) {
	body := Body{
		StatusCode: code,
		Msg:        msg,
		Data:       nil,
	}
	attachRequestID(c, &body)
	c.JSON(httpCode, body)
}

// httpStatus maps a business code onto the HTTP status line.
func httpStatus(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func attachRequestID(c *gin.Context, body *Body) {
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok {
			body.RequestID = s
		}
	}
}
