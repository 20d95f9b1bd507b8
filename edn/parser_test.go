package edn

import (
	"reflect"
	"testing"
)

func TestParserAtoms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Node
	}{
		{"nil", "nil", Node{Type: NodeNil, Line: 1, Col: 1}},
		{"true", "true", Node{Type: NodeBool, Value: "true", Line: 1, Col: 1}},
		{"integer", "42", Node{Type: NodeInt, Value: "42", Line: 1, Col: 1}},
		{"negative integer", "-42", Node{Type: NodeInt, Value: "-42", Line: 1, Col: 1}},
		{"float", "3.14", Node{Type: NodeFloat, Value: "3.14", Line: 1, Col: 1}},
		{"string", `"hello world"`, Node{Type: NodeString, Value: "hello world", Line: 1, Col: 1}},
		{"string with escapes", `"line1\nline2"`, Node{Type: NodeString, Value: "line1\nline2", Line: 1, Col: 1}},
		{"symbol", "foo", Node{Type: NodeSymbol, Value: "foo", Line: 1, Col: 1}},
		{"variable symbol", "?x", Node{Type: NodeSymbol, Value: "?x", Line: 1, Col: 1}},
		{"keyword", ":person/name", Node{Type: NodeKeyword, Value: ":person/name", Line: 1, Col: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.input, *got, tt.want)
			}
		})
	}
}

func TestParserCollections(t *testing.T) {
	node, err := Parse(`[:find ?e :where [?e :person/name "Alice"]]`)
	if err != nil {
		t.Fatal(err)
	}
	if node.Type != NodeVector {
		t.Fatalf("expected vector, got %v", node.Type)
	}
	if len(node.Nodes) != 4 {
		t.Fatalf("expected 4 top-level elements, got %d", len(node.Nodes))
	}
	where, ok := node.Nodes[3], node.Nodes[3].Type == NodeVector
	if !ok {
		t.Fatalf("expected where-clause vector, got %v", where.Type)
	}
}

func TestParserMap(t *testing.T) {
	node, err := Parse(`{:person/name "Bob" :person/age 30}`)
	if err != nil {
		t.Fatal(err)
	}
	if node.Type != NodeMap || len(node.Nodes) != 4 {
		t.Fatalf("unexpected map parse: %+v", node)
	}
}

func TestParserSet(t *testing.T) {
	node, err := Parse(`#{1 2 3}`)
	if err != nil {
		t.Fatal(err)
	}
	if node.Type != NodeSet || len(node.Nodes) != 3 {
		t.Fatalf("unexpected set parse: %+v", node)
	}
}

func TestParserDiscard(t *testing.T) {
	nodes, err := ParseAll(`1 #_2 3`)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected discard to drop one form, got %d nodes", len(nodes))
	}
}

func TestParserUnterminatedList(t *testing.T) {
	_, err := Parse(`(1 2 3`)
	if err == nil {
		t.Fatal("expected error for unterminated list")
	}
}

func TestNodeIsVariable(t *testing.T) {
	n, err := Parse("?x")
	if err != nil {
		t.Fatal(err)
	}
	if !n.IsVariable() {
		t.Fatal("expected ?x to be classified as a variable")
	}
	n2, _ := Parse("count")
	if n2.IsVariable() {
		t.Fatal("plain symbol misclassified as variable")
	}
}
