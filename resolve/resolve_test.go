package resolve

import "testing"

func testCatalogs() Catalogs {
	fixtures := map[string]Fixture{
		"A": {ID: "A", PixelCount: 100},
		"B": {ID: "B", PixelCount: 50},
	}
	groups := map[string]Group{
		"G1": {
			ID: "G1",
			Members: []GroupMember{
				{FixtureID: "A", WholeFixture: true},
				{FixtureID: "B", StartPixel: 10, EndPixel: 29},
			},
		},
	}
	virtuals := map[string]Virtual{
		"V1": {
			ID: "V1",
			Ranges: []VirtualRange{
				{FixtureID: "A", StartPixel: 0, EndPixel: 9},
				{FixtureID: "B", StartPixel: 0, EndPixel: 9},
			},
		},
	}

	return Catalogs{
		Fixture: func(id string) (Fixture, bool) { f, ok := fixtures[id]; return f, ok },
		Group:   func(id string) (Group, bool) { g, ok := groups[id]; return g, ok },
		Virtual: func(id string) (Virtual, bool) { v, ok := virtuals[id]; return v, ok },
	}
}

func TestResolve_Device(t *testing.T) {
	spans, err := Resolve(Target{Kind: KindDevice, ID: "A"}, testCatalogs(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 1 || spans[0] != (Span{FixtureID: "A", PixelOffset: 0, Length: 100}) {
		t.Errorf("unexpected spans: %+v", spans)
	}
}

func TestResolve_Group(t *testing.T) {
	// spec.md §8 scenario 5.
	spans, err := Resolve(Target{Kind: KindGroup, ID: "G1"}, testCatalogs(), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []Span{
		{FixtureID: "A", PixelOffset: 0, Length: 100},
		{FixtureID: "B", PixelOffset: 10, Length: 20},
	}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d: %+v", len(want), len(spans), spans)
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, spans[i], want[i])
		}
	}
	if TotalLength(spans) != 120 {
		t.Errorf("expected total length 120, got %d", TotalLength(spans))
	}
}

func TestResolve_Virtual(t *testing.T) {
	spans, err := Resolve(Target{Kind: KindVirtual, ID: "V1"}, testCatalogs(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if TotalLength(spans) != 20 {
		t.Errorf("expected total length 20, got %d", TotalLength(spans))
	}
}

func TestResolve_ExcludesFixtures(t *testing.T) {
	spans, err := Resolve(Target{Kind: KindGroup, ID: "G1"}, testCatalogs(), []string{"B"})
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 1 || spans[0].FixtureID != "A" {
		t.Errorf("expected only fixture A to remain, got %+v", spans)
	}
}

func TestResolve_UnknownDevice(t *testing.T) {
	_, err := Resolve(Target{Kind: KindDevice, ID: "missing"}, testCatalogs(), nil)
	if err == nil {
		t.Fatal("expected not-found error")
	}
}
