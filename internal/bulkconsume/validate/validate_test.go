package validate

import (
	"net/url"
	"strings"
	"testing"
)

func TestCheckConflicts(t *testing.T) {
	cases := []struct {
		name      string
		query     url.Values
		wantErr   bool
		wantInMsg string
	}{
		{"no conflicts", url.Values{"to-hint": {"123"}}, false, ""},
		{"with-history conflict", url.Values{"with-history": {"true"}}, true, "with-history"},
		{"with-deleted conflict", url.Values{"with-deleted": {"true"}}, true, "with-deleted"},
		{"recursive conflict", url.Values{"recursive": {"true"}}, true, "recursive"},
		{"with-descendants conflict", url.Values{"with-descendants": {"true"}}, true, "recursive"},
		{"length-hint conflict", url.Values{"length-hint": {"100"}}, true, "length-hint"},
		{"index-time conflict", url.Values{"index-time": {"1000"}}, true, "index-time"},
		{"qp conflict", url.Values{"qp": {"a:eq:b"}}, true, "qp"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CheckConflicts(c.query)
			if (err != nil) != c.wantErr {
				t.Fatalf("CheckConflicts() error = %v, wantErr %v", err, c.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), c.wantInMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), c.wantInMsg)
			}
		})
	}
}

func TestRequirePosition(t *testing.T) {
	if _, err := RequirePosition(url.Values{}); err == nil {
		t.Error("expected error when position is absent")
	}
	token, err := RequirePosition(url.Values{"position": {"abc123"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "abc123" {
		t.Errorf("token = %q, want %q", token, "abc123")
	}
}

func TestCheckFormat(t *testing.T) {
	cases := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{"empty", "", false},
		{"text", "text", false},
		{"path", "path", false},
		{"tsv", "tsv", false},
		{"nt", "nt", false},
		{"nq", "nquads", false},
		{"json variant", "jsonl", false},
		{"bare json", "json", false},
		{"unsupported", "xml", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CheckFormat(c.format)
			if (err != nil) != c.wantErr {
				t.Errorf("CheckFormat(%q) error = %v, wantErr %v", c.format, err, c.wantErr)
			}
		})
	}
}
