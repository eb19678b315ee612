package executor

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestExpandNodeSet_Simple(t *testing.T) {
	got, err := ExpandNodeSet("localhost")
	if err != nil {
		t.Fatalf("ExpandNodeSet: %v", err)
	}
	want := []string{"localhost"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandNodeSet = %v, want %v", got, want)
	}
}

func TestExpandNodeSet_Range(t *testing.T) {
	got, err := ExpandNodeSet("node[1-3]")
	if err != nil {
		t.Fatalf("ExpandNodeSet: %v", err)
	}
	want := []string{"node1", "node2", "node3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandNodeSet = %v, want %v", got, want)
	}
}

func TestExpandNodeSet_MixedAndDedup(t *testing.T) {
	got, err := ExpandNodeSet("node[1-2],edge,node1")
	if err != nil {
		t.Fatalf("ExpandNodeSet: %v", err)
	}
	want := []string{"node1", "node2", "edge"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandNodeSet = %v, want %v", got, want)
	}
}

func TestExpandNodeSet_ZeroPadded(t *testing.T) {
	got, err := ExpandNodeSet("node[08-10]")
	if err != nil {
		t.Fatalf("ExpandNodeSet: %v", err)
	}
	want := []string{"node08", "node09", "node10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandNodeSet = %v, want %v", got, want)
	}
}

func TestExpandNodeSet_Empty(t *testing.T) {
	if _, err := ExpandNodeSet(""); err == nil {
		t.Fatalf("ExpandNodeSet(\"\") did not error")
	}
}

func TestExpandNodeSet_BadRange(t *testing.T) {
	if _, err := ExpandNodeSet("node[5-1]"); err == nil {
		t.Fatalf("ExpandNodeSet with a descending range did not error")
	}
}

type recordingHandler struct {
	closed chan Worker
}

func (h *recordingHandler) OnHup(w Worker) {}
func (h *recordingHandler) OnClose(w Worker) {
	h.closed <- w
}

func TestLocalExecutor_SubmitAndRun_Success(t *testing.T) {
	e := NewLocalExecutor()
	h := &recordingHandler{closed: make(chan Worker, 1)}

	if _, err := e.Submit(context.Background(), "true", "localhost", 0, h); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case w := <-h.closed:
		for _, g := range w.IterRetcodes() {
			if g.Code != 0 {
				t.Fatalf("unexpected non-zero retcode group: %+v", g)
			}
		}
	default:
		t.Fatalf("OnClose was never called")
	}
}

func TestLocalExecutor_RejectsNonWhitelistedCommand(t *testing.T) {
	e := NewLocalExecutor()
	h := &recordingHandler{closed: make(chan Worker, 1)}
	_, err := e.Submit(context.Background(), "rm -rf /", "localhost", 0, h)
	if err == nil {
		t.Fatalf("Submit did not reject a non-whitelisted command")
	}
}

func TestLocalExecutor_Run_DrainsWithNoWork(t *testing.T) {
	e := NewLocalExecutor()
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run with nothing submitted: %v", err)
	}
}

func TestLocalExecutor_SetFanout(t *testing.T) {
	e := NewLocalExecutor()
	e.SetFanout(4)
	if e.sem == nil || cap(e.sem) != 4 {
		t.Fatalf("SetFanout(4) did not size the semaphore to 4")
	}
	e.SetFanout(0)
	if e.sem != nil {
		t.Fatalf("SetFanout(0) should clear the semaphore (unbounded)")
	}
}
