package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/feedback"
	"github.com/geocoder89/plansync/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bindRouter[T any]() *gin.Engine {
	r := gin.New()
	r.POST("/bind", func(ctx *gin.Context) {
		var req T
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func postBind(t *testing.T, r *gin.Engine, body string) bindErrorResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	return resp
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	resp := postBind(t, bindRouter[event.CreateEventRequest](), `{"description":"no title"}`)

	wantRules := map[string]string{
		"title":      "required",
		"event_date": "required",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_FeedbackImageTooLong(t *testing.T) {
	resp := postBind(t, bindRouter[feedback.CreateFeedbackRequest](), `{"name":"Ada","quote":"Great","image":"ada-portrait.png"}`)

	if len(resp.Error.Details.Fields) != 1 {
		t.Fatalf("expected one field error, got %+v", resp.Error.Details.Fields)
	}

	fieldErr := resp.Error.Details.Fields[0]
	if fieldErr.Field != "image" || fieldErr.Rule != "max" || fieldErr.Param != "10" {
		t.Fatalf("unexpected field error: %+v", fieldErr)
	}
	if fieldErr.Message != "must be at most 10" {
		t.Fatalf("unexpected message: %q", fieldErr.Message)
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	resp := postBind(t, bindRouter[feedback.CreateFeedbackRequest](), `{"name":"Ada","quote":"Great","rating":"five"}`)

	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "rating" {
		t.Fatalf("expected detail field to be rating, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 {
		t.Fatalf("expected at least one field error in details.fields")
	}

	fieldErr := resp.Error.Details.Fields[0]
	if fieldErr.Field != "rating" {
		t.Fatalf("expected fields[0].field=rating, got %q", fieldErr.Field)
	}
	if fieldErr.Rule != "type" {
		t.Fatalf("expected fields[0].rule=type, got %q", fieldErr.Rule)
	}
}

func TestBindJSON_SyntaxError(t *testing.T) {
	resp := postBind(t, bindRouter[event.CreateEventRequest](), `{"title": }`)

	if resp.Error.Details.JSON != "invalid_json_syntax" {
		t.Fatalf("unexpected json detail %q", resp.Error.Details.JSON)
	}
}

func TestBindJSON_BlankRequiredFields(t *testing.T) {
	resp := postBind(t, bindRouter[feedback.CreateFeedbackRequest](), `{"name":"   ","quote":"\n\t"}`)

	rules := map[string]string{}
	for _, fieldErr := range resp.Error.Details.Fields {
		rules[fieldErr.Field] = fieldErr.Rule
	}

	for _, field := range []string{"name", "quote"} {
		if rules[field] != "notblank" {
			t.Fatalf("expected notblank on %q, got %+v", field, resp.Error.Details.Fields)
		}
	}
}
