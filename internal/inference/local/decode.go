package local

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DecodeMode selects how decoder output becomes token ids.
type DecodeMode string

const (
	// DecodeSingle runs the decoder once from the start token and takes the
	// argmax at every output position.
	DecodeSingle DecodeMode = "single"
	// DecodeGreedy feeds the argmax of the last position back in until EOS or
	// the length bound.
	DecodeGreedy DecodeMode = "greedy"
)

// ParseDecodeMode maps a flag value to a DecodeMode. Empty means single.
func ParseDecodeMode(s string) (DecodeMode, error) {
	switch DecodeMode(s) {
	case "", DecodeSingle:
		return DecodeSingle, nil
	case DecodeGreedy:
		return DecodeGreedy, nil
	}
	return "", fmt.Errorf("unknown decode mode %q (want single or greedy)", s)
}

// ArgmaxIDs returns, for logits shaped [1, seq, vocab] or [seq, vocab], the
// index of the highest score at each position. Ties resolve to the first
// index.
func ArgmaxIDs(logits Tensor) ([]int64, error) {
	seq, vocab, err := logitsDims(logits)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, seq)
	row := make([]float64, vocab)
	for p := 0; p < seq; p++ {
		fillRow(row, logits.Floats[p*vocab:(p+1)*vocab])
		ids[p] = int64(floats.MaxIdx(row))
	}
	return ids, nil
}

// lastArgmax returns the argmax of the last position, never choosing any of
// the banned ids.
func lastArgmax(logits Tensor, banned ...int64) (int64, error) {
	seq, vocab, err := logitsDims(logits)
	if err != nil {
		return 0, err
	}
	if seq == 0 {
		return 0, fmt.Errorf("logits have no positions")
	}
	row := make([]float64, vocab)
	fillRow(row, logits.Floats[(seq-1)*vocab:seq*vocab])
	for _, id := range banned {
		if id >= 0 && int(id) < vocab {
			row[id] = math.Inf(-1)
		}
	}
	return int64(floats.MaxIdx(row)), nil
}

func logitsDims(t Tensor) (seq, vocab int, err error) {
	if t.Floats == nil {
		return 0, 0, fmt.Errorf("logits are not float32")
	}
	switch len(t.Shape) {
	case 3:
		if t.Shape[0] != 1 {
			return 0, 0, fmt.Errorf("batch size %d not supported", t.Shape[0])
		}
		seq, vocab = int(t.Shape[1]), int(t.Shape[2])
	case 2:
		seq, vocab = int(t.Shape[0]), int(t.Shape[1])
	default:
		return 0, 0, fmt.Errorf("logits must be rank 2 or 3, got shape %v", t.Shape)
	}
	if vocab <= 0 {
		return 0, 0, fmt.Errorf("logits have empty vocabulary")
	}
	if err := t.validate(); err != nil {
		return 0, 0, err
	}
	return seq, vocab, nil
}

func fillRow(dst []float64, src []float32) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}
