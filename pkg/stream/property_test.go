package stream

import (
	"testing"

	"pgregory.net/rapid"
)

// 模型：推模式下事件进入 pushed，拉模式下进入 queue；切换模式清空 queue
func TestMediator_ModelProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewMediator[int]()
		var pushed []int
		cb := func(ev int) { pushed = append(pushed, ev) }

		var modelQueue, modelPushed []int
		push := false
		next := 0

		ops := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 200).Draw(t, "ops")
		for _, op := range ops {
			switch op {
			case 0: // emit
				next++
				m.Emit(next)
				if push {
					modelPushed = append(modelPushed, next)
				} else {
					modelQueue = append(modelQueue, next)
				}
			case 1: // get
				ev, ok, err := m.GetNext(0)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(modelQueue) == 0 {
					if ok {
						t.Fatalf("expected timeout, got %d", ev)
					}
					continue
				}
				if !ok || ev != modelQueue[0] {
					t.Fatalf("expected %d, got %d (ok=%v)", modelQueue[0], ev, ok)
				}
				modelQueue = modelQueue[1:]
			case 2: // install
				flushed := m.SetCallback(cb)
				if flushed != len(modelQueue) {
					t.Fatalf("flushed %d, model had %d", flushed, len(modelQueue))
				}
				modelQueue = nil
				push = true
			case 3: // remove
				m.SetCallback(nil)
				modelQueue = nil
				push = false
			}
			if push && m.Pending() != 0 {
				t.Fatalf("queue not empty in push mode: %d", m.Pending())
			}
		}

		if len(pushed) != len(modelPushed) {
			t.Fatalf("pushed %v, model %v", pushed, modelPushed)
		}
		for i := range pushed {
			if pushed[i] != modelPushed[i] {
				t.Fatalf("pushed %v, model %v", pushed, modelPushed)
			}
		}
	})
}

// 无模式切换时，N 个事件按生成顺序取出，第 N+1 次超时
func TestMediator_FIFOProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		xs := rapid.SliceOf(rapid.Int()).Draw(t, "xs")
		m := NewMediator[int]()
		for _, x := range xs {
			m.Emit(x)
		}
		for i, x := range xs {
			ev, ok, _ := m.GetNext(0)
			if !ok || ev != x {
				t.Fatalf("index %d: expected %d, got %d (ok=%v)", i, x, ev, ok)
			}
		}
		if _, ok, _ := m.GetNext(0); ok {
			t.Fatalf("expected timeout after %d events", len(xs))
		}
	})
}
