// Package local runs a seq2seq encoder/decoder pair in-process through
// onnxruntime.
package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagebrief/internal/inference"
)

// Token ids shared by the T5 family of models.
const (
	StartTokenID int64 = 0
	EOSTokenID   int64 = 1
)

const (
	DefaultMaxInputTokens = 512
	DefaultMaxLength      = 100
	summarizePrefix       = "summarize: "
)

// Tensor names used by seq2seq ONNX exports.
const (
	feedInputIDs       = "input_ids"
	feedAttentionMask  = "attention_mask"
	feedEncoderHidden  = "encoder_hidden_states"
	feedEncoderMask    = "encoder_attention_mask"
	outLastHiddenState = "last_hidden_state"
	outLogits          = "logits"
	outOutputIDs       = "output_ids"
)

// Options tune the local adapter. Zero values pick the defaults.
type Options struct {
	Mode DecodeMode
	// MaxInputTokens truncates the encoded prompt.
	MaxInputTokens int
	// MaxLength and MinLength bound greedy decoding.
	MaxLength int
	MinLength int
	// TaskPrefix prepends "summarize: " to summarization prompts.
	TaskPrefix bool
}

// Adapter implements inference.Adapter over a loaded Model.
type Adapter struct {
	Model   *Model
	Options Options
}

func (a *Adapter) Name() string { return "local" }

// Infer encodes the prompt, runs the encoder once and decodes according to
// Options.Mode.
func (a *Adapter) Infer(ctx context.Context, req inference.Request) (string, error) {
	if a.Model == nil || a.Model.Encoder == nil || a.Model.Decoder == nil {
		return "", inference.ErrModelNotLoaded
	}
	if a.Model.Tokenizer == nil {
		return "", inference.ErrTokenizerNotLoaded
	}

	prompt := req.Prompt()
	if req.Task == inference.TaskSummarize && a.Options.TaskPrefix {
		prompt = summarizePrefix + prompt
	}
	ids, err := a.Model.Tokenizer.Encode(prompt)
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}
	ids = truncateIDs(ids, a.maxInputTokens())

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	encOut, err := a.Model.Encoder.Run(ctx, map[string]Tensor{
		feedInputIDs:      IntTensor(ids),
		feedAttentionMask: IntTensor(mask),
	})
	if err != nil {
		return "", fmt.Errorf("encoder: %w", err)
	}
	hidden, ok := encOut[outLastHiddenState]
	if !ok {
		return "", fmt.Errorf("encoder produced no %s", outLastHiddenState)
	}

	var outIDs []int64
	switch a.Options.Mode {
	case DecodeGreedy:
		outIDs, err = a.greedy(ctx, hidden, mask)
	default:
		outIDs, err = a.single(ctx, hidden, mask)
	}
	if err != nil {
		return "", err
	}

	text, err := a.Model.Tokenizer.Decode(stripSpecial(outIDs))
	if err != nil {
		return "", fmt.Errorf("decode ids: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", inference.ErrEmptyOutput
	}
	log.Debug().Int("input_tokens", len(ids)).Int("output_tokens", len(outIDs)).Str("mode", string(a.mode())).Msg("local inference done")
	return text, nil
}

func (a *Adapter) mode() DecodeMode {
	if a.Options.Mode == "" {
		return DecodeSingle
	}
	return a.Options.Mode
}

func (a *Adapter) maxInputTokens() int {
	if a.Options.MaxInputTokens > 0 {
		return a.Options.MaxInputTokens
	}
	return DefaultMaxInputTokens
}

// single runs the decoder once from the start token. Logits go through
// argmax per position; a decoder that only emits ids is taken as is.
func (a *Adapter) single(ctx context.Context, hidden Tensor, mask []int64) ([]int64, error) {
	out, err := a.runDecoder(ctx, []int64{StartTokenID}, hidden, mask)
	if err != nil {
		return nil, err
	}
	if logits, ok := out[outLogits]; ok && logits.Floats != nil {
		return ArgmaxIDs(logits)
	}
	if ids, ok := out[outOutputIDs]; ok && ids.Ints != nil {
		return ids.Ints, nil
	}
	return nil, fmt.Errorf("decoder produced neither %s nor %s", outLogits, outOutputIDs)
}

// greedy feeds each chosen token back in. EOS is suppressed until MinLength
// tokens exist.
func (a *Adapter) greedy(ctx context.Context, hidden Tensor, mask []int64) ([]int64, error) {
	maxLen := a.Options.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	seq := []int64{StartTokenID}
	for len(seq)-1 < maxLen {
		out, err := a.runDecoder(ctx, seq, hidden, mask)
		if err != nil {
			return nil, err
		}
		logits, ok := out[outLogits]
		if !ok {
			return nil, fmt.Errorf("greedy decoding needs %s output", outLogits)
		}
		var banned []int64
		if len(seq)-1 < a.Options.MinLength {
			banned = append(banned, EOSTokenID)
		}
		next, err := lastArgmax(logits, banned...)
		if err != nil {
			return nil, err
		}
		if next == EOSTokenID {
			break
		}
		seq = append(seq, next)
	}
	return seq[1:], nil
}

func (a *Adapter) runDecoder(ctx context.Context, seq []int64, hidden Tensor, mask []int64) (map[string]Tensor, error) {
	out, err := a.Model.Decoder.Run(ctx, map[string]Tensor{
		feedInputIDs:      IntTensor(seq),
		feedEncoderHidden: hidden,
		feedEncoderMask:   IntTensor(mask),
	})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	return out, nil
}

// truncateIDs keeps the first max ids, ending on EOS when the original did.
func truncateIDs(ids []int64, max int) []int64 {
	if len(ids) <= max {
		return ids
	}
	out := append([]int64(nil), ids[:max]...)
	if ids[len(ids)-1] == EOSTokenID {
		out[max-1] = EOSTokenID
	}
	return out
}

// stripSpecial drops the start token and everything from the first EOS on.
func stripSpecial(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for i, id := range ids {
		if id == EOSTokenID {
			break
		}
		if i == 0 && id == StartTokenID {
			continue
		}
		out = append(out, id)
	}
	return out
}
