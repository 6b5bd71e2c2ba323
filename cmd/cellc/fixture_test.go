package main

import (
	"testing"

	"github.com/cellc/cellc/pkg/fixture"
)

func TestApplyDefinesOverridesNamedParam(t *testing.T) {
	m, err := fixture.Decode([]byte(`{"var":"t","params":[{"name":"k","value":-2}]}`))
	if err != nil {
		t.Fatalf("fixture.Decode: %v", err)
	}
	if err := applyDefines(m, []string{"k=3.5"}); err != nil {
		t.Fatalf("applyDefines: %v", err)
	}
	if m.Params[0].Value != 3.5 {
		t.Fatalf("expected k=3.5, got %v", m.Params[0].Value)
	}
}

func TestApplyDefinesRejectsUnknownParam(t *testing.T) {
	m, err := fixture.Decode([]byte(`{"var":"t"}`))
	if err != nil {
		t.Fatalf("fixture.Decode: %v", err)
	}
	if err := applyDefines(m, []string{"nope=1"}); err == nil {
		t.Fatalf("expected an error for an unknown parameter")
	}
}

func TestApplyDefinesRejectsMalformedDefine(t *testing.T) {
	m, err := fixture.Decode([]byte(`{"var":"t"}`))
	if err != nil {
		t.Fatalf("fixture.Decode: %v", err)
	}
	if err := applyDefines(m, []string{"noequals"}); err == nil {
		t.Fatalf("expected an error for a define with no '='")
	}
}
