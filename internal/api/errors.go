package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed request.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindServer     Kind = "server"
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
)

// Error is returned for every failed backend call.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (%d)", e.Status)
	}
	if e.Detail != "" {
		sb.WriteString(": " + e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": " + e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// retryable reports whether an idempotent request may be sent again.
func (e *Error) retryable() bool {
	return e.Kind == KindNetwork || (e.Kind == KindServer && e.Status >= 500)
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuth reports whether err means the credentials are missing or rejected.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// DetailOf returns the server-provided message of err, or err.Error().
func DetailOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}

type fieldMsg struct {
	Msg string `json:"msg"`
}

// parseDetail extracts a human-readable message from an error body.
// It understands {"detail": "..."}, {"detail": [{"msg": ...}]},
// [{"msg": ...}] and {"msg": "..."}.
func parseDetail(body []byte, status int) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return http.StatusText(status)
	}

	var list []fieldMsg
	if err := json.Unmarshal(body, &list); err == nil {
		if s := joinMsgs(list); s != "" {
			return s
		}
	}

	var obj struct {
		Detail json.RawMessage `json:"detail"`
		Msg    string          `json:"msg"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if len(obj.Detail) > 0 {
			var s string
			if err := json.Unmarshal(obj.Detail, &s); err == nil && s != "" {
				return s
			}
			if err := json.Unmarshal(obj.Detail, &list); err == nil {
				if s := joinMsgs(list); s != "" {
					return s
				}
			}
		}
		if obj.Msg != "" {
			return obj.Msg
		}
	}

	text := string(body)
	if body[0] == '{' || body[0] == '[' || body[0] == '<' {
		return http.StatusText(status)
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func joinMsgs(list []fieldMsg) string {
	msgs := make([]string, 0, len(list))
	for _, m := range list {
		if m.Msg != "" {
			msgs = append(msgs, m.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
