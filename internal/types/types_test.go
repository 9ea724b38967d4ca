package types

import (
	"errors"
	"strings"
	"testing"
)

func TestQueryRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     QueryRequest
		wantErr string
	}{
		{"ok", NewQueryRequest("what is new"), ""},
		{"short question", NewQueryRequest("hi"), "at least 4"},
		{"too many sources", QueryRequest{Question: "valid question", MaxSources: 21}, "between 1 and 20"},
		{"zero sources", QueryRequest{Question: "valid question"}, "between 1 and 20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("Validate() = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestQueryRequestNormalizeDefaults(t *testing.T) {
	req := QueryRequest{Question: "  latest models  "}
	req.Normalize()
	if req.MaxSources != DefaultMaxSources {
		t.Errorf("MaxSources = %d, want %d", req.MaxSources, DefaultMaxSources)
	}
	if req.Question != "latest models" {
		t.Errorf("Question = %q", req.Question)
	}
	if !req.WantsPlaybook() {
		t.Error("WantsPlaybook() = false, want true by default")
	}
	off := false
	req.IncludePlaybook = &off
	if req.WantsPlaybook() {
		t.Error("WantsPlaybook() = true with include_playbook=false")
	}
}

func TestParseSourceType(t *testing.T) {
	cases := map[string]SourceType{
		"arxiv":   SourceArxiv,
		"Blog":    SourceBlogs,
		"blogs":   SourceBlogs,
		"twitter": SourceTwitter,
		"myspace": SourceOther,
	}
	for in, want := range cases {
		if got := ParseSourceType(in); got != want {
			t.Errorf("ParseSourceType(%q) = %q, want %q", in, got, want)
		}
	}
}
