package server

import (
	"strings"
	"sync"
	"testing"

	"github.com/chazu/lox/driver"
)

func TestWorkerDo(t *testing.T) {
	w := NewWorker(NewWorkspace(driver.EngineTree))
	defer w.Stop()

	got, err := w.Do(func(ws *Workspace) interface{} {
		return len(ws.Analyze("file:///w.lox", "let a = 1;").Decls)
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("Do = %v, want 1", got)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewWorker(NewWorkspace(driver.EngineTree))
	defer w.Stop()

	_, err := w.Do(func(*Workspace) interface{} {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Do error = %v, want the panic value", err)
	}

	// The worker keeps serving after a panic.
	if v, err := w.Do(func(*Workspace) interface{} { return "ok" }); err != nil || v != "ok" {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorkerSerializesAccess(t *testing.T) {
	w := NewWorker(NewWorkspace(driver.EngineVM))
	defer w.Stop()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Do(func(ws *Workspace) interface{} {
				return ws.Sessions().Run("file:///shared.lox", "print 1;")
			})
		}()
	}
	wg.Wait()

	got, _ := w.Do(func(ws *Workspace) interface{} { return ws.Sessions().Len() })
	if got != 1 {
		t.Errorf("Sessions().Len() = %v, want 1", got)
	}
}

func TestWorkspaceForget(t *testing.T) {
	ws := NewWorkspace(driver.EngineVM)
	ws.Analyze("file:///f.lox", "let x = 1;")
	res := ws.Sessions().Run("file:///f.lox", "let x = 1; print x;")
	if res.Output != "1\n" || res.Error != "" {
		t.Fatalf("Run = %+v", res)
	}
	if got := ws.Sessions().Globals("file:///f.lox"); len(got) != 1 || got[0] != "x" {
		t.Errorf("Globals = %v, want [x]", got)
	}

	ws.Forget("file:///f.lox")
	if _, ok := ws.Get("file:///f.lox"); ok {
		t.Error("analysis survived Forget")
	}
	if ws.Sessions().Len() != 0 {
		t.Error("run session survived Forget")
	}
}
