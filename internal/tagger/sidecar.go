package tagger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"vnsched/internal/entity"
	appLog "vnsched/internal/log"
)

// ErrCircuitOpen is returned while the sidecar is considered down.
var ErrCircuitOpen = errors.New("tagger sidecar circuit is open")

// sidecarEntity is one span in the sidecar /extract response.
type sidecarEntity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type extractResponse struct {
	Entities []sidecarEntity `json:"entities"`
}

// Sidecar calls an external NER service (e.g. an underthesea or spaCy
// process) over HTTP. Consecutive failures open a circuit breaker so a dead
// sidecar costs nothing per request until it recovers.
type Sidecar struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// SidecarConfig tunes the client. Zero values get defaults.
type SidecarConfig struct {
	Timeout time.Duration
	// MaxFailures consecutive errors trip the breaker. Default: 3
	MaxFailures uint32
	// OpenFor is how long the breaker stays open. Default: 30s
	OpenFor time.Duration
}

func NewSidecar(baseURL string, cfg SidecarConfig) *Sidecar {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "tagger-sidecar",
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			appLog.Warn("tagger circuit state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Sidecar{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Tag implements entity.Tagger.
func (s *Sidecar) Tag(text string) ([]entity.Token, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.extract(text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	ents := out.([]sidecarEntity)
	tokens := make([]entity.Token, 0, len(ents))
	for _, e := range ents {
		tokens = append(tokens, entity.Token{Text: e.Text, Tag: e.Label})
	}
	return tokens, nil
}

func (s *Sidecar) extract(text string) ([]sidecarEntity, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := s.httpClient.Post(s.baseURL+"/extract", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Entities, nil
}

// Healthy reports whether the sidecar answers /health.
func (s *Sidecar) Healthy() bool {
	resp, err := s.httpClient.Get(s.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
