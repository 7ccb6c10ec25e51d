package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"straf/encoder"
	"straf/log"
)

const (
	groqAPIURL       = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqDefaultModel = "whisper-large-v3-turbo"

	// Segments more likely silence than speech are discarded.
	groqNoSpeechCutoff = 0.8
)

// Groq posts each utterance as FLAC to Groq's hosted whisper endpoint.
type Groq struct {
	batch
	apiKey string
	apiURL string
	client *uploadClient

	mu     sync.Mutex
	prompt string
}

func NewGroq(apiKey string, cfg Config) *Groq {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = groqDefaultModel
	}
	g := &Groq{
		batch:  batch{cfg: cfg},
		apiKey: apiKey,
		apiURL: groqAPIURL,
		client: newUploadClient(),
	}
	g.recognize = g.transcribe
	return g
}

func (g *Groq) Name() string { return "groq" }

// Initialize passes the vocabulary to whisper as a prompt, which biases
// decoding towards those spellings.
func (g *Groq) Initialize(hints []string) error {
	if g.apiKey == "" {
		return errors.New("groq: API key is empty")
	}
	g.mu.Lock()
	g.prompt = strings.Join(hints, ", ")
	g.mu.Unlock()
	go g.client.warm(g.apiURL)
	return nil
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// transcribe uploads one mono utterance from the segmenter.
func (g *Groq) transcribe(ctx context.Context, pcm []byte) (string, float64, error) {
	utt, err := encoder.FLAC(pcm, g.cfg.SampleRate, 1)
	if err != nil {
		return "", 0, fmt.Errorf("encoding utterance: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.flac")
	if err != nil {
		return "", 0, err
	}
	if _, err := part.Write(utt.Data); err != nil {
		return "", 0, err
	}

	g.mu.Lock()
	prompt := g.prompt
	g.mu.Unlock()

	writer.WriteField("model", g.cfg.Model)
	writer.WriteField("response_format", "verbose_json")
	if g.cfg.Language != "" {
		writer.WriteField("language", g.cfg.Language)
	}
	if prompt != "" {
		writer.WriteField("prompt", prompt)
	}
	writer.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+g.apiKey)
	header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.post(ctx, g.apiURL, header, body.Bytes())
	if err != nil {
		return "", 0, fmt.Errorf("groq: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return "", 0, fmt.Errorf("groq response parse error: %w", err)
	}

	log.Debugf("groq: %.1fs audio, %d bytes flac (%.0f%%, %dms), connect %dms, ttfb %dms, total %dms, reused=%v, attempts %d, ratelimit %s/%s",
		gResp.Duration, len(utt.Data), utt.Ratio()*100, utt.Elapsed.Milliseconds(), resp.Trace.Connect.Milliseconds(),
		resp.Trace.TTFB.Milliseconds(), resp.Trace.Total.Milliseconds(), resp.Trace.Reused, resp.Trace.Attempts,
		firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests"),
		firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"))

	text, confidence := groqText(gResp)
	return text, confidence, nil
}

// groqText joins the segments that are likely speech. Confidence is the
// mean token probability, exp(avg_logprob), over those segments.
func groqText(r groqResponse) (string, float64) {
	if len(r.Segments) == 0 {
		return strings.TrimSpace(r.Text), 1
	}
	var parts []string
	var logProbSum float64
	for _, seg := range r.Segments {
		if seg.NoSpeechProb > groqNoSpeechCutoff {
			continue
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
			logProbSum += seg.AvgLogProb
		}
	}
	if len(parts) == 0 {
		return "", 0
	}
	conf := math.Exp(logProbSum / float64(len(parts)))
	return strings.Join(parts, " "), min(max(conf, 0), 1)
}
