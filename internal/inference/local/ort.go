package local

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// initRuntime initializes the process-wide onnxruntime environment once.
func initRuntime(libraryPath string) error {
	runtimeOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// ortSession runs an ONNX file through onnxruntime with names discovered from
// the model itself.
type ortSession struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

func openSession(path string) (*ortSession, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, err
	}
	s := &ortSession{}
	for _, in := range inInfo {
		s.inputs = append(s.inputs, in.Name)
	}
	for _, out := range outInfo {
		s.outputs = append(s.outputs, out.Name)
	}
	s.session, err = ort.NewDynamicAdvancedSession(path, s.inputs, s.outputs, nil)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ortSession) Run(ctx context.Context, feeds map[string]Tensor) (map[string]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inputs := make([]ort.Value, 0, len(s.inputs))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, name := range s.inputs {
		t, ok := feeds[name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", name)
		}
		v, err := toValue(t)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		inputs = append(inputs, v)
	}

	outputs := make([]ort.Value, len(s.outputs))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()

	s.mu.Lock()
	err := s.session.Run(inputs, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	res := make(map[string]Tensor, len(outputs))
	for i, v := range outputs {
		t, ok := fromValue(v)
		if !ok {
			continue
		}
		res[s.outputs[i]] = t
	}
	return res, nil
}

func (s *ortSession) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Destroy()
}

func toValue(t Tensor) (ort.Value, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	shape := ort.NewShape(t.Shape...)
	if t.Floats != nil {
		return ort.NewTensor(shape, t.Floats)
	}
	return ort.NewTensor(shape, t.Ints)
}

// fromValue copies the data out so the runtime value can be destroyed.
func fromValue(v ort.Value) (Tensor, bool) {
	switch tv := v.(type) {
	case *ort.Tensor[float32]:
		return Tensor{Shape: append([]int64(nil), tv.GetShape()...), Floats: append([]float32(nil), tv.GetData()...)}, true
	case *ort.Tensor[int64]:
		return Tensor{Shape: append([]int64(nil), tv.GetShape()...), Ints: append([]int64(nil), tv.GetData()...)}, true
	}
	return Tensor{}, false
}
