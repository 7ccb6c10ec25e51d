package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"straf/audio"
	"straf/log"
)

const (
	deepgramEndpoint     = "wss://api.deepgram.com/v1/listen"
	deepgramDefaultModel = "nova-3"

	streamChunkMs    = 200
	streamQueue      = 64
	reconnectMin     = 250 * time.Millisecond
	reconnectMax     = 10 * time.Second
	closeStreamGrace = time.Second
)

// Deepgram streams audio over one long-lived websocket and reports every
// final result as a phrase. A dropped connection is redialed with backoff
// until Stop.
type Deepgram struct {
	apiKey   string
	cfg      Config
	endpoint string

	hintsMu sync.Mutex
	hints   []string

	feedMu  sync.Mutex
	feedBuf []byte

	mu      sync.Mutex
	audio   chan []byte
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Int64
	closing atomic.Bool
}

func NewDeepgram(apiKey string, cfg Config) *Deepgram {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = deepgramDefaultModel
	}
	return &Deepgram{apiKey: apiKey, cfg: cfg, endpoint: deepgramEndpoint}
}

func (d *Deepgram) Name() string { return "deepgram" }

// Initialize records the vocabulary as key terms, which Deepgram boosts
// during recognition.
func (d *Deepgram) Initialize(hints []string) error {
	if d.apiKey == "" {
		return errors.New("deepgram: API key is empty")
	}
	if _, err := d.buildURL(); err != nil {
		return fmt.Errorf("deepgram: %w", err)
	}
	d.hintsMu.Lock()
	d.hints = append([]string(nil), hints...)
	d.hintsMu.Unlock()
	return nil
}

func (d *Deepgram) buildURL() (string, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return "", err
	}

	q := endpoint.Query()
	q.Set("model", d.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(d.cfg.Channels))
	if d.cfg.Language != "" {
		q.Set("language", d.cfg.Language)
	}
	d.hintsMu.Lock()
	for _, h := range d.hints {
		q.Add("keyterm", h)
	}
	d.hintsMu.Unlock()
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) Start(onPhrase PhraseFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.audio = make(chan []byte, streamQueue)
	d.closing.Store(false)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, d.audio, d.done, onPhrase)
	return nil
}

func (d *Deepgram) run(ctx context.Context, in <-chan []byte, done chan struct{}, onPhrase PhraseFunc) {
	defer close(done)
	backoff := reconnectMin
	for {
		connected, err := d.session(ctx, in, onPhrase)
		if ctx.Err() != nil || d.closing.Load() {
			return
		}
		if connected {
			backoff = reconnectMin
		}
		log.Warnf("deepgram: stream lost: %v, reconnecting in %v", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, reconnectMax)
	}
}

// session runs one websocket connection until it fails or ctx ends.
func (d *Deepgram) session(ctx context.Context, in <-chan []byte, onPhrase PhraseFunc) (bool, error) {
	wsURL, err := d.buildURL()
	if err != nil {
		return false, err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	log.Infof("deepgram: connected (%s)", d.cfg.Model)

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.conn = nil
		d.mu.Unlock()
	}()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-sessCtx.Done():
				writeErr <- nil
				return
			case chunk := <-in:
				if err := conn.Write(sessCtx, websocket.MessageBinary, chunk); err != nil {
					writeErr <- err
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(sessCtx)
		if err != nil {
			cancel()
			if werr := <-writeErr; werr != nil {
				return true, werr
			}
			return true, err
		}
		text, conf, ok := parseDeepgramResponse(data)
		if ok {
			onPhrase(text, conf)
		}
	}
}

type deepgramStreamResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseDeepgramResponse returns the transcript of a final, non-empty
// Results message.
func parseDeepgramResponse(data []byte) (string, float64, bool) {
	var resp deepgramStreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", 0, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return "", 0, false
	}
	if !resp.IsFinal && !resp.SpeechFinal && !resp.FromFinalize {
		return "", 0, false
	}
	alt := resp.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return "", 0, false
	}
	return text, alt.Confidence, true
}

// Feed batches frames into streamChunkMs chunks. Chunks are dropped while
// the connection is down or the queue is full.
func (d *Deepgram) Feed(pcm []byte) {
	d.mu.Lock()
	in := d.audio
	d.mu.Unlock()
	if in == nil {
		return
	}

	chunkBytes := d.cfg.SampleRate * d.cfg.Channels * audio.BytesPerSample * streamChunkMs / 1000

	d.feedMu.Lock()
	d.feedBuf = append(d.feedBuf, pcm...)
	var chunks [][]byte
	for len(d.feedBuf) >= chunkBytes {
		chunk := make([]byte, chunkBytes)
		copy(chunk, d.feedBuf[:chunkBytes])
		d.feedBuf = d.feedBuf[chunkBytes:]
		chunks = append(chunks, chunk)
	}
	d.feedMu.Unlock()

	for _, chunk := range chunks {
		select {
		case in <- chunk:
		default:
			if n := d.dropped.Add(1); n == 1 || n%50 == 0 {
				log.Warnf("deepgram: %d audio chunks dropped", n)
			}
		}
	}
}

// Stop asks the server to flush pending results and close the stream,
// waits briefly for it to do so, then tears the connection down and joins
// the receiver.
func (d *Deepgram) Stop() {
	d.mu.Lock()
	cancel, done, conn := d.cancel, d.done, d.conn
	d.cancel, d.done, d.audio = nil, nil, nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	d.closing.Store(true)

	if conn != nil {
		ctx, cancelWrite := context.WithTimeout(context.Background(), closeStreamGrace)
		err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		cancelWrite()
		if err == nil {
			select {
			case <-done:
			case <-time.After(closeStreamGrace):
			}
		}
	}
	cancel()
	<-done

	d.feedMu.Lock()
	d.feedBuf = nil
	d.feedMu.Unlock()
}
