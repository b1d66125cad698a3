package render

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const mmdcSVG = `<svg aria-roledescription="flowchart-v2" width="100%" style="max-width: 252.5px;" viewBox="-8 -8 252.5 174" xmlns="http://www.w3.org/2000/svg"></svg>`

// fakeExec returns an Exec whose command writes svg to the -o path.
func fakeExec(svg string, calls *atomic.Int32) *Exec {
	e := NewExec("mmdc")
	e.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if calls != nil {
			calls.Add(1)
		}
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				return nil, os.WriteFile(args[i+1], []byte(svg), 0o600)
			}
		}
		return nil, errors.New("no -o")
	}
	return e
}

func TestExecRender(t *testing.T) {
	var calls atomic.Int32
	e := fakeExec(mmdcSVG, &calls)

	res, err := e.Render(context.Background(), sampleFlow, DarkTheme)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Size.Width != 252.5 || res.Size.Height != 174 {
		t.Errorf("Size = %+v, want 252.5x174", res.Size)
	}
	if res.Renderer != NameExec || res.Diagram != nil {
		t.Errorf("Renderer = %q Diagram = %v", res.Renderer, res.Diagram)
	}
	if calls.Load() != 1 {
		t.Errorf("runCommand called %d times, want 1", calls.Load())
	}
}

func TestExecRender_Unavailable(t *testing.T) {
	e := NewExec("")
	e.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	if e.Available() {
		t.Error("Available() = true with failing lookPath")
	}
	_, err := e.Render(context.Background(), sampleFlow, DarkTheme)
	if !errors.Is(err, ErrRendererUnavailable) {
		t.Errorf("err = %v, want ErrRendererUnavailable", err)
	}
}

func TestExecRender_CommandFailure(t *testing.T) {
	e := NewExec("mmdc")
	e.lookPath = func(name string) (string, error) { return name, nil }
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("\nError: Parse error on line 2:\n..."), errors.New("exit status 1")
	}

	_, err := e.Render(context.Background(), sampleFlow, DarkTheme)
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
	if se.Msg != "Error: Parse error on line 2:" {
		t.Errorf("Msg = %q", se.Msg)
	}
}

func TestExecRender_Timeout(t *testing.T) {
	e := NewExec("mmdc", WithExecTimeout(20*time.Millisecond))
	e.lookPath = func(name string) (string, error) { return name, nil }
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := e.Render(context.Background(), sampleFlow, DarkTheme)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestExecRender_Concurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	e := fakeExec(mmdcSVG, nil)
	inner := e.runCommand
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return inner(ctx, name, args...)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Render(context.Background(), sampleFlow, DarkTheme); err != nil {
				t.Errorf("Render: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() > MaxConcurrentRenders {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), MaxConcurrentRenders)
	}
}

func TestParseSVGSize(t *testing.T) {
	tests := []struct {
		name    string
		svg     string
		w, h    float64
		wantErr bool
	}{
		{"viewBox", mmdcSVG, 252.5, 174, false},
		{"comma viewBox", `<svg viewBox="0,0,10,20">`, 10, 20, false},
		{"width height", `<svg width="300px" height="150">`, 300, 150, false},
		{"relative size", `<svg width="100%" height="100%">`, 0, 0, true},
		{"not svg", `hello`, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSVGSize([]byte(tt.svg))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (got.Width != tt.w || got.Height != tt.h) {
				t.Errorf("size = %+v, want %vx%v", got, tt.w, tt.h)
			}
		})
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf []byte
	w := &limitedWriter{w: writerFunc(func(p []byte) (int, error) {
		buf = append(buf, p...)
		return len(p), nil
	}), limit: 5}

	n, err := w.Write([]byte("abcdefgh"))
	if err != nil || n != 8 {
		t.Errorf("Write = %d, %v; want 8, nil", n, err)
	}
	if string(buf) != "abcde" {
		t.Errorf("buffered %q, want %q", buf, "abcde")
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
