package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestEtagListed(t *testing.T) {
	const etag = `"abc"`

	tests := []struct {
		header string
		want   bool
	}{
		{header: "", want: false},
		{header: "*", want: true},
		{header: `"abc"`, want: true},
		{header: `W/"abc"`, want: true},
		{header: `"x", W/"abc"`, want: true},
		{header: `"abcd"`, want: false},
	}

	for _, tt := range tests {
		if got := etagListed(tt.header, etag); got != tt.want {
			t.Fatalf("etagListed(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestRespondJSONWithETag_VariesOnCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(ctx *gin.Context) {
		RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": []string{"Acme"}})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusOK || w.Body.String() != `{"items":["Acme"]}` {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Vary") != "Authorization, Cookie" {
		t.Fatalf("unexpected Vary %q", w.Header().Get("Vary"))
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
}
