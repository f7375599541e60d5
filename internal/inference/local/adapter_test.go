package local

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperifyio/pagebrief/internal/inference"
)

// fakeTokenizer maps each space-separated word to its index in vocab.
type fakeTokenizer struct {
	vocab   []string
	encoded []int64
}

func (f *fakeTokenizer) Encode(text string) ([]int64, error) {
	var ids []int64
	for range strings.Fields(text) {
		ids = append(ids, 5)
	}
	ids = append(ids, EOSTokenID)
	f.encoded = ids
	return ids, nil
}

func (f *fakeTokenizer) Decode(ids []int64) (string, error) {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if int(id) < len(f.vocab) {
			words = append(words, f.vocab[id])
		}
	}
	return strings.Join(words, " "), nil
}

type fakeSession struct {
	run   func(feeds map[string]Tensor) (map[string]Tensor, error)
	feeds []map[string]Tensor
}

func (f *fakeSession) Run(ctx context.Context, feeds map[string]Tensor) (map[string]Tensor, error) {
	f.feeds = append(f.feeds, feeds)
	return f.run(feeds)
}

func (f *fakeSession) Close() error { return nil }

func encoderStub() *fakeSession {
	return &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		n := feeds[feedInputIDs].Shape[1]
		return map[string]Tensor{outLastHiddenState: {Shape: []int64{1, n, 2}, Floats: make([]float32, n*2)}}, nil
	}}
}

// oneHot builds [1, len(ids), vocab] logits peaking at ids.
func oneHot(ids []int64, vocab int) Tensor {
	f := make([]float32, len(ids)*vocab)
	for p, id := range ids {
		f[p*vocab+int(id)] = 1
	}
	return Tensor{Shape: []int64{1, int64(len(ids)), int64(vocab)}, Floats: f}
}

var vocab = []string{"<pad>", "</s>", "the", "page", "is", "x"}

func TestAdapter_SingleLogits(t *testing.T) {
	dec := &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		return map[string]Tensor{outLogits: oneHot([]int64{2, 3, 4, 1, 3}, len(vocab))}, nil
	}}
	tok := &fakeTokenizer{vocab: vocab}
	a := &Adapter{Model: &Model{Encoder: encoderStub(), Decoder: dec, Tokenizer: tok}}

	out, err := a.Infer(context.Background(), inference.Request{Task: inference.TaskSummarize, Text: "some long page"})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out != "the page is" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(dec.feeds) != 1 {
		t.Fatalf("single mode must run the decoder once, ran %d", len(dec.feeds))
	}
	in := dec.feeds[0][feedInputIDs]
	if len(in.Ints) != 1 || in.Ints[0] != StartTokenID {
		t.Fatalf("decoder must start from the start token, got %v", in.Ints)
	}
	if _, ok := dec.feeds[0][feedEncoderHidden]; !ok {
		t.Fatal("missing encoder hidden states feed")
	}
}

func TestAdapter_SingleOutputIDs(t *testing.T) {
	dec := &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		return map[string]Tensor{outOutputIDs: {Shape: []int64{1, 3}, Ints: []int64{0, 5, 1}}}, nil
	}}
	a := &Adapter{Model: &Model{Encoder: encoderStub(), Decoder: dec, Tokenizer: &fakeTokenizer{vocab: vocab}}}
	out, err := a.Infer(context.Background(), inference.Request{Text: "p"})
	if err != nil || out != "x" {
		t.Fatalf("expected x, got %q (%v)", out, err)
	}
}

func TestAdapter_SinglePrefersLogits(t *testing.T) {
	dec := &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		return map[string]Tensor{
			outLogits:    oneHot([]int64{3, 1}, len(vocab)),
			outOutputIDs: {Shape: []int64{1, 2}, Ints: []int64{5, 1}},
		}, nil
	}}
	a := &Adapter{Model: &Model{Encoder: encoderStub(), Decoder: dec, Tokenizer: &fakeTokenizer{vocab: vocab}}}

	out, err := a.Infer(context.Background(), inference.Request{Task: inference.TaskSummarize, Text: "page"})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out != "page" {
		t.Fatalf("expected logits to win, got %q", out)
	}
}

func TestAdapter_GreedyStopsOnEOS(t *testing.T) {
	script := []int64{2, 3, 1}
	dec := &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		n := len(feeds[feedInputIDs].Ints)
		ids := make([]int64, n)
		ids[n-1] = script[n-1]
		return map[string]Tensor{outLogits: oneHot(ids, len(vocab))}, nil
	}}
	a := &Adapter{
		Model:   &Model{Encoder: encoderStub(), Decoder: dec, Tokenizer: &fakeTokenizer{vocab: vocab}},
		Options: Options{Mode: DecodeGreedy, MaxLength: 10},
	}
	out, err := a.Infer(context.Background(), inference.Request{Text: "p"})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out != "the page" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(dec.feeds) != 3 {
		t.Fatalf("expected 3 decoder steps, got %d", len(dec.feeds))
	}
}

func TestAdapter_GreedyHonorsBounds(t *testing.T) {
	dec := &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		n := len(feeds[feedInputIDs].Ints)
		// EOS scores highest, "x" second
		f := make([]float32, n*len(vocab))
		f[(n-1)*len(vocab)+1] = 2
		f[(n-1)*len(vocab)+5] = 1
		return map[string]Tensor{outLogits: {Shape: []int64{1, int64(n), int64(len(vocab))}, Floats: f}}, nil
	}}
	a := &Adapter{
		Model:   &Model{Encoder: encoderStub(), Decoder: dec, Tokenizer: &fakeTokenizer{vocab: vocab}},
		Options: Options{Mode: DecodeGreedy, MaxLength: 5, MinLength: 3},
	}
	out, err := a.Infer(context.Background(), inference.Request{Text: "p"})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out != "x x x" {
		t.Fatalf("expected EOS suppressed until min length, got %q", out)
	}
}

func TestAdapter_PromptAndTruncation(t *testing.T) {
	dec := &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		return map[string]Tensor{outOutputIDs: {Shape: []int64{1, 1}, Ints: []int64{5}}}, nil
	}}
	enc := encoderStub()
	tok := &fakeTokenizer{vocab: vocab}
	a := &Adapter{
		Model:   &Model{Encoder: enc, Decoder: dec, Tokenizer: tok},
		Options: Options{MaxInputTokens: 4, TaskPrefix: true},
	}
	if _, err := a.Infer(context.Background(), inference.Request{Text: "a b c d e f g"}); err != nil {
		t.Fatalf("infer: %v", err)
	}
	ids := enc.feeds[0][feedInputIDs]
	if len(ids.Ints) != 4 || ids.Ints[3] != EOSTokenID {
		t.Fatalf("expected 4 ids ending in EOS, got %v", ids.Ints)
	}
	mask := enc.feeds[0][feedAttentionMask]
	if len(mask.Ints) != 4 || mask.Ints[0] != 1 {
		t.Fatalf("unexpected mask %v", mask.Ints)
	}
}

func TestAdapter_NotLoaded(t *testing.T) {
	ctx := context.Background()
	if _, err := (&Adapter{}).Infer(ctx, inference.Request{}); !errors.Is(err, inference.ErrModelNotLoaded) {
		t.Fatalf("expected ErrModelNotLoaded, got %v", err)
	}
	m := &Model{Encoder: encoderStub(), Decoder: encoderStub()}
	if _, err := (&Adapter{Model: m}).Infer(ctx, inference.Request{}); !errors.Is(err, inference.ErrTokenizerNotLoaded) {
		t.Fatalf("expected ErrTokenizerNotLoaded, got %v", err)
	}
}

func TestAdapter_EmptyDecodeIsEmptyOutput(t *testing.T) {
	dec := &fakeSession{run: func(feeds map[string]Tensor) (map[string]Tensor, error) {
		return map[string]Tensor{outOutputIDs: {Shape: []int64{1, 2}, Ints: []int64{0, 1}}}, nil
	}}
	a := &Adapter{Model: &Model{Encoder: encoderStub(), Decoder: dec, Tokenizer: &fakeTokenizer{vocab: vocab}}}
	if _, err := a.Infer(context.Background(), inference.Request{}); !errors.Is(err, inference.ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
}

func TestAdapter_EncoderErrorPropagates(t *testing.T) {
	boom := errors.New("ort failure")
	enc := &fakeSession{run: func(map[string]Tensor) (map[string]Tensor, error) { return nil, boom }}
	a := &Adapter{Model: &Model{Encoder: enc, Decoder: enc, Tokenizer: &fakeTokenizer{vocab: vocab}}}
	if _, err := a.Infer(context.Background(), inference.Request{Text: "p"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped encoder error, got %v", err)
	}
}

func TestLoad_MissingArtifactsReturnsPartialModel(t *testing.T) {
	m, err := Load(LoadConfig{Dir: t.TempDir(), LibraryPath: "/nonexistent/libonnxruntime.so"})
	if err == nil {
		t.Fatal("expected load error")
	}
	if m == nil || m.Tokenizer != nil {
		t.Fatalf("expected empty partial model, got %+v", m)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
