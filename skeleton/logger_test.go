package skeleton

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLoggerWhileComposing(t *testing.T) {
	defer SetLogger(nil)

	core, logs := observer.New(zapcore.WarnLevel)
	observed := zap.New(core)

	j := NewJoint("root", -1, [3]float32{})
	j.BindRotation = Quat{}
	joints := []Joint{j}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := Compose(joints, DefaultOptions()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				SetLogger(zap.NewNop())
				SetLogger(observed)
			}
		}()
	}
	wg.Wait()

	if _, err := Compose(joints, DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessage("degenerate joint rotation").Len() == 0 {
		t.Errorf("no warning reached the installed logger")
	}
}
