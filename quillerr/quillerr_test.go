package quillerr

import (
	"errors"
	"testing"
)

func TestWrappersPreserveMessageAndNilPassthrough(t *testing.T) {
	base := errors.New("schema: duplicate attribute :person/name")

	err := Schema(base)
	if err.Error() != base.Error() {
		t.Fatalf("Error() = %q, want %q", err.Error(), base.Error())
	}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to see through to the wrapped error")
	}

	if Schema(nil) != nil {
		t.Fatal("expected Schema(nil) to return nil")
	}
	if Transact(nil) != nil {
		t.Fatal("expected Transact(nil) to return nil")
	}
	if Query(nil) != nil {
		t.Fatal("expected Query(nil) to return nil")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"schema", Schema(errors.New("x")), KindSchema},
		{"transact", Transact(errors.New("x")), KindTransact},
		{"query", Query(errors.New("x")), KindQuery},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := KindOf(c.err)
			if !ok {
				t.Fatal("expected a Kind to be found")
			}
			if got != c.want {
				t.Fatalf("KindOf = %v, want %v", got, c.want)
			}
		})
	}

	if _, ok := KindOf(errors.New("untyped")); ok {
		t.Fatal("expected no Kind for an untyped error")
	}
}
