package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		write      func(c *gin.Context)
		wantStatus int
		wantCode   string
	}{
		{"success", func(c *gin.Context) { Success(c, gin.H{"x": 1}) }, http.StatusOK, CodeSuccess},
		{"param", func(c *gin.Context) { ParamError(c, "bad") }, http.StatusBadRequest, CodeBadRequest},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "no") }, http.StatusUnauthorized, CodeUnauthorized},
		{"not found", func(c *gin.Context) { NotFound(c, "gone") }, http.StatusNotFound, CodeNotFound},
		{"server", ServerError, http.StatusInternalServerError, CodeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.write(c)

			if w.Code != tt.wantStatus {
				t.Fatalf("status=%d want=%d", w.Code, tt.wantStatus)
			}
			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.wantCode {
				t.Fatalf("code=%q want=%q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestServerErrorIsOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	ServerError(c)
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "Unexpected server error" || body.Data != nil {
		t.Fatalf("body=%+v", body)
	}
}
