package local

import (
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// hfTokenizer wraps a tokenizer.json definition.
type hfTokenizer struct {
	tk *tokenizer.Tokenizer
}

// LoadTokenizer reads a Hugging Face tokenizer.json file.
func LoadTokenizer(path string) (Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, err
	}
	return &hfTokenizer{tk: tk}, nil
}

func (h *hfTokenizer) Encode(text string) ([]int64, error) {
	enc, err := h.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(enc.Ids))
	for i, id := range enc.Ids {
		ids[i] = int64(id)
	}
	return ids, nil
}

func (h *hfTokenizer) Decode(ids []int64) (string, error) {
	in := make([]int, len(ids))
	for i, id := range ids {
		in[i] = int(id)
	}
	return strings.TrimSpace(h.tk.Decode(in, true)), nil
}
