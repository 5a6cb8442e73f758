package frame

import "testing"

func TestOfValuesInsertsTop(t *testing.T) {
	f := OfValues(Integer, Long, Object, Double)
	want := Of(Integer, Long, Top, Object, Double, Top)
	if !f.Equal(want) {
		t.Fatalf("OfValues = %s, want %s", f, want)
	}
	if f.String() != "[IJTADT]" {
		t.Errorf("String() = %s", f)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if got := f.Values(); len(got) != 4 || got[1] != Long || got[3] != Double {
		t.Errorf("Values() = %v", got)
	}
}

func TestValidateRejectsSplitPair(t *testing.T) {
	if err := Of(Long, Integer).Validate(); err == nil {
		t.Error("long followed by int should not validate")
	}
	if err := Of(Double).Validate(); err == nil {
		t.Error("trailing double should not validate")
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name string
		a, b Frame
		want Frame
	}{
		{"equal", Of(Integer, Object), Of(Integer, Object), Of(Integer, Object)},
		{"mismatch", Of(Integer, Object), Of(Float, Object), Of(Error, Object)},
		{"shorter left", Of(Integer), Of(Integer, Float), Of(Integer, Error)},
		{"both empty", Empty, Empty, Empty},
		{"unused tail", Of(Integer, Unused), Of(Integer), Of(Integer, Unused)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combine(tt.a, tt.b); !got.Equal(tt.want) {
				t.Errorf("Combine(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCombineLaws(t *testing.T) {
	frames := []Frame{
		Empty,
		Of(Integer),
		Of(Integer, Float),
		OfValues(Long, Object),
		Of(Error, Object),
		Of(Unused, Unused, Integer),
	}

	for _, a := range frames {
		if got := Combine(a, a); !got.Equal(a) {
			t.Errorf("Combine(%s, %s) = %s, not idempotent", a, a, got)
		}
		for _, b := range frames {
			ab, ba := Combine(a, b), Combine(b, a)
			if !ab.Equal(ba) {
				t.Errorf("Combine not commutative: %s vs %s", ab, ba)
			}
			for i := 0; i < max(a.Len(), b.Len()); i++ {
				if a.At(i) != b.At(i) && ab.At(i) != Error {
					t.Errorf("Combine(%s, %s) slot %d = %s, want error", a, b, i, ab.At(i))
				}
			}
		}
	}
}

func TestIsCompatibleWith(t *testing.T) {
	tests := []struct {
		a, b Frame
		want bool
	}{
		{Of(Integer), Of(Integer), true},
		{Of(Integer), Of(Float), false},
		{Of(Error), Of(Float), true},
		{Of(Object), Of(Irrelevant), true},
		{Of(Integer), Of(Integer, Object), false},
		{Of(Integer, Unused), Of(Integer), true},
	}

	for _, tt := range tests {
		if got := tt.a.IsCompatibleWith(tt.b); got != tt.want {
			t.Errorf("%s.IsCompatibleWith(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAccepts(t *testing.T) {
	declared := Of(Integer, Unused, Object)
	if !declared.Accepts(Of(Integer, Float, Object)) {
		t.Error("declared unused slot should accept float")
	}
	if declared.Accepts(Of(Integer)) {
		t.Error("declared object should reject a missing arriving slot")
	}
	if !Of(Integer, Unused, Unused).Accepts(Of(Integer)) {
		t.Error("missing arriving slots are unused and should be accepted")
	}
	if declared.Accepts(Of(Float, Unused, Object)) {
		t.Error("declared int should reject float")
	}
	if !declared.Accepts(Of(Error, Unused, Object)) {
		t.Error("arriving error slot should be accepted")
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	f := Of(Integer)
	g := f.With(3, Object)
	if f.Len() != 1 {
		t.Errorf("original frame changed: %s", f)
	}
	if g.String() != "[I__A]" {
		t.Errorf("With = %s", g)
	}
	if g.Trimmed().Len() != 4 || Of(Integer, Unused).Trimmed().Len() != 1 {
		t.Error("Trimmed dropped the wrong slots")
	}
}

func TestElementFromDescriptor(t *testing.T) {
	for c, want := range map[byte]Element{'Z': Integer, 'C': Integer, 'J': Long, 'D': Double, 'L': Object, '[': Object} {
		if got, ok := FromDescriptor(c); !ok || got != want {
			t.Errorf("FromDescriptor(%c) = %s, %v", c, got, ok)
		}
	}
	if _, ok := FromDescriptor('V'); ok {
		t.Error("void has no element")
	}
	if e, ok := FromLetter('R'); !ok || e != ReturnAddress {
		t.Errorf("FromLetter(R) = %s", e)
	}
}
