package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUserMessage(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"data unavailable", DataUnavailable(cause), "The sales data is unavailable right now."},
		{"no entity", NoEntity(), "I couldn't find a valid location in your request."},
		{"malformed slot", MalformedSlot(cause), "Please give me a month between 1 and 12 and a year between 1900 and 2099."},
		{"empty group", EmptyGroup(cause), "There is no sales data to rank."},
		{"wrapped app error", fmt.Errorf("handler: %w", NoEntity()), "I couldn't find a valid location in your request."},
		{"plain error", cause, "Something went wrong while answering your question."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("slot")
	err := MalformedSlot(cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped cause to be found with errors.Is")
	}
	if err.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, http.StatusUnprocessableEntity)
	}
	if Code(err) != CodeMalformedSlot {
		t.Errorf("Code() = %s, want %s", Code(err), CodeMalformedSlot)
	}
}

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"bad request", BadRequest("invalid json"), http.StatusBadRequest, CodeBadRequest},
		{"data unavailable", DataUnavailable(nil), http.StatusServiceUnavailable, CodeDataUnavailable},
		{"plain error", stderrors.New("unexpected"), http.StatusInternalServerError, CodeInternal},
		{"forbidden", Forbidden("token"), http.StatusForbidden, CodeForbidden},
		{"reload failed", ReloadFailed(stderrors.New("disk gone")), http.StatusServiceUnavailable, CodeServiceUnavail},
		{"no entity", NoEntity(), http.StatusUnprocessableEntity, CodeNoEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, logger, tt.err, "req-1")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success {
				t.Error("expected success to be false")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
			if resp.Error.RequestID != "req-1" {
				t.Errorf("request id = %q", resp.Error.RequestID)
			}
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var resp struct {
		Data    map[string]string `json:"data"`
		Success bool              `json:"success"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data["hello"] != "world" {
		t.Errorf("unexpected response %+v", resp)
	}
}
