package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bgricker/ctsrun/internal/report"
)

func TestJSONRenderResults(t *testing.T) {
	summary := report.Summary{
		RunID:    "run-1",
		Arch:     "arm64",
		Platform: "O",
		ExitCode: 1,
		Modules: []report.ModuleResult{
			{Module: "CtsWebkitTestCases.apk", Status: report.StatusFailed, ExitCode: 1, DurationMS: 10},
		},
	}

	buf := &bytes.Buffer{}
	if err := NewJSON(buf).RenderResults(summary); err != nil {
		t.Fatalf("render json: %v", err)
	}

	var decoded report.Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.RunID != "run-1" || decoded.ExitCode != 1 {
		t.Fatalf("summary mismatch: %+v", decoded)
	}
	if len(decoded.Modules) != 1 || decoded.Modules[0].Module != "CtsWebkitTestCases.apk" {
		t.Fatalf("module mismatch: %+v", decoded.Modules)
	}
}

func TestJSONRenderEmptyList(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSON(buf).RenderList(List{Arch: "arm64", Platform: "L"}); err != nil {
		t.Fatalf("render list: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"modules": []`)) {
		t.Fatalf("expected empty modules array, got %s", buf.String())
	}
}

func TestNew(t *testing.T) {
	if r, err := New("json", &bytes.Buffer{}); err != nil {
		t.Fatalf("New(json): %v", err)
	} else if _, ok := r.(*JSONRenderer); !ok {
		t.Fatalf("expected JSON renderer, got %T", r)
	}
	if r, err := New("", &bytes.Buffer{}); err != nil {
		t.Fatalf("New(\"\"): %v", err)
	} else if _, ok := r.(*PrettyRenderer); !ok {
		t.Fatalf("expected pretty renderer, got %T", r)
	}
	if _, err := New("xml", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
