package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "conversion",
			err:      Conversion([]string{"0"}, "int", "x", "x"),
			contains: []string{"[convert]", "conversion", "at 0", "expected int", "got 'x'"},
		},
		{
			name:     "arity",
			err:      InvalidArgumentCount("add", 3, 2),
			contains: []string{"[call]", "invalid_argument_count", "in add", "received 3 arguments", "2 was expected"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLifetime,
				Kind:  KindClosed,
			},
			contains: []string{"[lifetime]", "closed"},
		},
		{
			name:     "with cause and call site",
			err:      HostCallable(PhaseCall, "Math", "div", errors.New("division by zero")),
			contains: []string{"[call]", "host_callable", "Math.div", "caused by", "division by zero"},
		},
		{
			name: "go type",
			err: New(PhaseLower, KindTypeMismatch).
				GoType("chan int").
				Detail("cannot lower").
				Build(),
			contains: []string{"[lower]", "Go type chan int", " - cannot lower"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindInvalidInput, cause, "read file")

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Conversion([]string{"1"}, "string", 5, "5")

	if !errors.Is(err, &Error{Phase: PhaseConvert, Kind: KindConversion}) {
		t.Error("should match same phase and kind")
	}
	if !errors.Is(err, &Error{Kind: KindConversion}) {
		t.Error("kind-only target should match")
	}
	if errors.Is(err, &Error{Phase: PhaseCall, Kind: KindConversion}) {
		t.Error("should not match different phase")
	}
	if errors.Is(err, &Error{Kind: KindUnsupportedConversion}) {
		t.Error("should not match different kind")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var target *Error
	if !errors.As(wrapped, &target) || target.Stringified != "5" {
		t.Errorf("errors.As through wrap failed: %v", target)
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseConvert, KindConversion).
		Path("2", "name").
		Descriptor("string").
		Value(42.0, "42").
		Call("Users", "create").
		Detail("field %s", "name").
		Build()

	if err.Module != "Users" || err.Method != "create" {
		t.Errorf("call site = %s.%s", err.Module, err.Method)
	}
	if strings.Join(err.Path, ".") != "2.name" {
		t.Errorf("path = %v", err.Path)
	}
	if err.Detail != "field name" {
		t.Errorf("detail = %q", err.Detail)
	}
	if err.ErrorCode() != CodeArgumentCast {
		t.Errorf("code = %q", err.ErrorCode())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantMsg   string
		wantCoded bool
	}{
		{
			name:      "coded host error",
			err:       Coded("ERR_NOT_READY", "camera %s is not ready", "front"),
			wantCode:  "ERR_NOT_READY",
			wantMsg:   "camera front is not ready",
			wantCoded: true,
		},
		{
			name:      "plain host error",
			err:       errors.New("boom"),
			wantCode:  CodeUnexpected,
			wantMsg:   "boom",
			wantCoded: false,
		},
		{
			name:      "wrapped coded host error",
			err:       HostCallable(PhaseCall, "M", "f", Coded("ERR_X", "bad")),
			wantCode:  "ERR_X",
			wantMsg:   "bad",
			wantCoded: true,
		},
		{
			name:      "wrapped plain host error",
			err:       HostCallable(PhaseAsync, "M", "f", errors.New("nope")),
			wantCode:  CodeUnexpected,
			wantMsg:   "nope",
			wantCoded: false,
		},
		{
			name:      "arity",
			err:       InvalidArgumentCount("f", 2, 1),
			wantCode:  CodeInvalidArgsNumber,
			wantCoded: true,
		},
		{
			name:      "unsupported",
			err:       UnsupportedConversion("view-tag"),
			wantCode:  CodeUnsupportedConversion,
			wantCoded: true,
		},
		{
			name:      "internal",
			err:       UnexpectedInternal(PhaseCall, "M", "f", errors.New("x")),
			wantCode:  CodeInternal,
			wantCoded: true,
		},
		{
			name:      "explicit code override",
			err:       New(PhaseCall, KindInvalidInput).Code("ERR_CUSTOM").Build(),
			wantCode:  "ERR_CUSTOM",
			wantCoded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg, coded := Classify(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
			if coded != tt.wantCoded {
				t.Errorf("coded = %v, want %v", coded, tt.wantCoded)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if code, msg, coded := Classify(nil); code != "" || msg != "" || coded {
		t.Errorf("Classify(nil) = %q, %q, %v", code, msg, coded)
	}
}
