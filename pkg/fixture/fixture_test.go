package fixture

import "testing"

func TestDecodeBuildsModel(t *testing.T) {
	data := []byte(`{
		"var": "t",
		"states": [{"name": "x", "init": 5}],
		"params": [{"name": "k", "value": -2}],
		"odes": [{"name": "x", "expr": {"op": "times", "args": [
			{"op": "var", "name": "k"},
			{"op": "var", "name": "x"}
		]}}],
		"observables": [{"name": "twice_x", "expr": {"op": "times", "args": [
			{"op": "const", "val": 2},
			{"op": "var", "name": "x"}
		]}}]
	}`)

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.States) != 1 || m.States[0].Name != "x" || m.States[0].Init != 5 {
		t.Fatalf("unexpected states: %+v", m.States)
	}
	if len(m.Odes) != 1 {
		t.Fatalf("expected one ode, got %d", len(m.Odes))
	}
	if len(m.Observables) != 1 {
		t.Fatalf("expected one observable, got %d", len(m.Observables))
	}
}

func TestDecodeRejectsMissingOp(t *testing.T) {
	data := []byte(`{"var":"t","odes":[{"name":"x","expr":{}}]}`)
	if _, err := Decode(data); err == nil {
		t.Fatalf("expected an error for a node with no \"op\"")
	}
}

func TestDecodeRejectsMissingVarName(t *testing.T) {
	data := []byte(`{"var":"t","odes":[{"name":"x","expr":{"op":"var"}}]}`)
	if _, err := Decode(data); err == nil {
		t.Fatalf("expected an error for a var node with no name")
	}
}
