package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Session is one loaded network that can run a forward pass.
type Session interface {
	// Run evaluates the network. Feeds the network does not declare are
	// ignored; outputs are keyed by name.
	Run(ctx context.Context, feeds map[string]Tensor) (map[string]Tensor, error)
	Close() error
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
	Decode(ids []int64) (string, error)
}

// Model is the loaded encoder, decoder and tokenizer. It is created once at
// startup and passed to the adapter; any field may be nil when loading failed.
type Model struct {
	Encoder   Session
	Decoder   Session
	Tokenizer Tokenizer
}

// Close releases both sessions.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, s := range []Session{m.Encoder, m.Decoder} {
		if s != nil {
			errs = append(errs, s.Close())
		}
	}
	return errors.Join(errs...)
}

// Artifact file names inside a model directory.
const (
	EncoderFile   = "encoder_model.onnx"
	DecoderFile   = "decoder_model.onnx"
	TokenizerFile = "tokenizer.json"
)

// LoadConfig locates the model artifacts.
type LoadConfig struct {
	// Dir holds the three artifacts under their default names.
	Dir string
	// Explicit paths override Dir.
	EncoderPath   string
	DecoderPath   string
	TokenizerPath string
	// LibraryPath is the onnxruntime shared library. Empty uses the runtime
	// default lookup.
	LibraryPath string
}

func (c LoadConfig) path(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(c.Dir, name)
}

// Load opens whatever artifacts it can. The returned Model is never nil; the
// error joins every artifact that failed so callers can log it and keep
// serving placeholder results.
func Load(cfg LoadConfig) (*Model, error) {
	m := &Model{}
	var errs []error

	encPath := cfg.path(cfg.EncoderPath, EncoderFile)
	decPath := cfg.path(cfg.DecoderPath, DecoderFile)
	if err := initRuntime(cfg.LibraryPath); err != nil {
		errs = append(errs, fmt.Errorf("onnxruntime: %w", err))
	} else {
		if s, err := openSession(encPath); err != nil {
			errs = append(errs, fmt.Errorf("encoder %s: %w", encPath, err))
		} else {
			m.Encoder = s
		}
		if s, err := openSession(decPath); err != nil {
			errs = append(errs, fmt.Errorf("decoder %s: %w", decPath, err))
		} else {
			m.Decoder = s
		}
	}

	tokPath := cfg.path(cfg.TokenizerPath, TokenizerFile)
	if _, err := os.Stat(tokPath); err != nil {
		errs = append(errs, fmt.Errorf("tokenizer %s: %w", tokPath, err))
	} else if tk, err := LoadTokenizer(tokPath); err != nil {
		errs = append(errs, fmt.Errorf("tokenizer %s: %w", tokPath, err))
	} else {
		m.Tokenizer = tk
	}

	err := errors.Join(errs...)
	if err == nil {
		log.Info().Str("encoder", encPath).Str("decoder", decPath).Str("tokenizer", tokPath).Msg("local model loaded")
	}
	return m, err
}
