//go:build whisper

package transcriber

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"straf/log"
)

// Whisper runs whisper.cpp locally on each utterance cut by the Segmenter.
type Whisper struct {
	batch

	mu     sync.Mutex
	model  whisperlib.Model
	prompt string
}

func NewWhisper(cfg Config) (Transcriber, error) {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		return nil, errors.New("whisper: no model file configured (stt.model or STRAF_WHISPER_MODEL)")
	}
	w := &Whisper{batch: batch{cfg: cfg}}
	w.recognize = w.infer
	return w, nil
}

func (w *Whisper) Name() string { return "whisper" }

// Initialize loads the model. The vocabulary becomes the initial prompt.
func (w *Whisper) Initialize(hints []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		model, err := whisperlib.New(w.cfg.Model)
		if err != nil {
			return fmt.Errorf("whisper: load model %q: %w", w.cfg.Model, err)
		}
		w.model = model
	}
	w.prompt = strings.Join(hints, ", ")
	return nil
}

func (w *Whisper) infer(ctx context.Context, pcm []byte) (string, float64, error) {
	w.mu.Lock()
	model, prompt := w.model, w.prompt
	w.mu.Unlock()
	if model == nil {
		return "", 0, errNotRunning
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", 0, fmt.Errorf("whisper: create context: %w", err)
	}
	if w.cfg.Language != "" {
		if err := wctx.SetLanguage(w.cfg.Language); err != nil {
			log.Warnf("whisper: language %q not supported: %v", w.cfg.Language, err)
		}
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return "", 0, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	var probSum float64
	var tokens int
	for ctx.Err() == nil {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			probSum += float64(tok.P)
			tokens++
		}
	}

	conf := 1.0
	if tokens > 0 {
		conf = probSum / float64(tokens)
	}
	return strings.Join(parts, " "), conf, nil
}

// Stop joins the worker and releases the model.
func (w *Whisper) Stop() {
	w.batch.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		w.model.Close()
		w.model = nil
	}
}

func pcmToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}
