package blend

import "testing"

func TestComposite_OpacityZeroKeepsDestination(t *testing.T) {
	dst := []byte{10, 20, 30}
	src := []byte{200, 200, 200}
	want := []byte{10, 20, 30}

	if err := Composite(dst, src, ModeNormal, 0); err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestComposite_OpacityOneNormalEqualsSource(t *testing.T) {
	dst := []byte{10, 20, 30}
	src := []byte{200, 150, 5}

	if err := Composite(dst, src, ModeNormal, 1); err != nil {
		t.Fatal(err)
	}
	for i, want := range src {
		if dst[i] != want {
			t.Errorf("byte %d = %d, want %d", i, dst[i], want)
		}
	}
}

func TestComposite_AddClamps(t *testing.T) {
	dst := []byte{200, 0, 0}
	src := []byte{200, 0, 0}

	if err := Composite(dst, src, ModeAdd, 1); err != nil {
		t.Fatal(err)
	}
	if dst[0] != 255 {
		t.Errorf("expected clamp to 255, got %d", dst[0])
	}
}

func TestComposite_UnknownModeErrors(t *testing.T) {
	dst := []byte{0, 0, 0}
	src := []byte{0, 0, 0}
	if err := Composite(dst, src, Mode("bogus"), 1); err == nil {
		t.Fatal("expected error for unknown blend mode")
	}
}

func TestCompositeStack_SkipsDisabledLayers(t *testing.T) {
	layers := []Layer{
		{Buffer: []byte{255, 0, 0}, Mode: ModeNormal, Opacity: 1, Enabled: false},
		{Buffer: []byte{0, 255, 0}, Mode: ModeNormal, Opacity: 1, Enabled: true},
	}
	out, err := CompositeStack(1, layers)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 255, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, out[i], want[i])
		}
	}
}
