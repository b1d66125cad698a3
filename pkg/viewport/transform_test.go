package viewport

import (
	"testing"
	"time"
)

func TestTransform_Strings(t *testing.T) {
	tr := Transform{PanX: 300, PanY: 250.5, Zoom: 1.25}

	if got, want := tr.CSS(), "translate(300px, 250.5px) scale(1.25)"; got != want {
		t.Errorf("CSS() = %q, want %q", got, want)
	}
	if got, want := tr.SVG(), "translate(300 250.5) scale(1.25)"; got != want {
		t.Errorf("SVG() = %q, want %q", got, want)
	}
	if got, want := tr.Label(), "125%"; got != want {
		t.Errorf("Label() = %q, want %q", got, want)
	}
}

func TestTransform_StringsTrimNoise(t *testing.T) {
	tr := Transform{PanX: 299.99999999999994, PanY: -0.0000000001, Zoom: 1}
	if got, want := tr.SVG(), "translate(300 0) scale(1)"; got != want {
		t.Errorf("SVG() = %q, want %q", got, want)
	}
}

func TestZoomLabel(t *testing.T) {
	tests := map[float64]string{
		0.25:  "25%",
		1:     "100%",
		1.5:   "150%",
		3.999: "400%",
		4:     "400%",
	}
	for z, want := range tests {
		if got := ZoomLabel(z); got != want {
			t.Errorf("ZoomLabel(%v) = %q, want %q", z, got, want)
		}
	}
}

func TestTransform_ApplyInvert(t *testing.T) {
	tr := Transform{PanX: 40, PanY: -20, Zoom: 2}
	p := Point{X: 15, Y: 7}

	screen := tr.Apply(p)
	if screen != (Point{X: 70, Y: -6}) {
		t.Errorf("Apply(%v) = %v, want (70,-6)", p, screen)
	}
	if back := tr.Invert(screen); back != p {
		t.Errorf("Invert(Apply(p)) = %v, want %v", back, p)
	}
	if got := (Transform{}).Invert(Point{1, 1}); got != (Point{}) {
		t.Errorf("Invert with zero zoom = %v, want origin", got)
	}
}

func TestScheduler_OnlyLatestRuns(t *testing.T) {
	rec := &recorder{}
	host := fixedHost{container: Size{100, 100}, content: Size{20, 20}, rendered: true}
	c := New(WithSurface(rec), WithHost(host))
	s := NewScheduler(c, 20*time.Millisecond)

	s.Schedule()
	s.Schedule()
	s.Schedule()
	if !s.Pending() {
		t.Fatal("expected a pending centering")
	}

	time.Sleep(120 * time.Millisecond)

	rec.mu.Lock()
	n := len(rec.transforms)
	rec.mu.Unlock()
	if n != 1 {
		t.Fatalf("recentered %d times, want 1", n)
	}
	if st := c.State(); st.PanX != 40 || st.PanY != 40 {
		t.Errorf("pan = (%v,%v), want (40,40)", st.PanX, st.PanY)
	}
	if s.Pending() {
		t.Error("Pending() = true after the centering ran")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	rec := &recorder{}
	c := New(WithSurface(rec))
	s := NewScheduler(c, 10*time.Millisecond)

	s.Schedule()
	s.Cancel()
	time.Sleep(60 * time.Millisecond)

	if _, ok := rec.last(); ok {
		t.Error("cancelled centering still ran")
	}
}

func TestScheduler_DefaultDelay(t *testing.T) {
	s := NewScheduler(New(), 0)
	if s.Delay() != DefaultCenterDelay {
		t.Errorf("Delay() = %v, want %v", s.Delay(), DefaultCenterDelay)
	}
}
