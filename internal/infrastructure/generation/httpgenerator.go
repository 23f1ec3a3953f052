package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/utils/logutil"
)

const (
	defaultGenerationTimeout = 60 * time.Second
	// Maximum flow document accepted from the remote service (1MB)
	maxFlowResponseSize = 1 << 20
	maxErrorSnippet     = 200
)

type generateRequest struct {
	FunnelID  string            `json:"funnel_id"`
	Resources []resourcePayload `json:"resources"`
}

type generateResponse struct {
	Flow json.RawMessage `json:"flow"`
}

// HTTPGenerator delegates flow generation to a remote service.
type HTTPGenerator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     logger.Interface
}

// NewHTTPGenerator creates a generator posting to endpoint. timeout <= 0 uses
// a 60 second default.
func NewHTTPGenerator(endpoint, apiKey string, timeout time.Duration, logger logger.Interface) *HTTPGenerator {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &HTTPGenerator{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ funnel.Generator = (*HTTPGenerator)(nil)

func (g *HTTPGenerator) Generate(ctx context.Context, funnelID string, resources []*catalog.Resource) (funnel.Flow, error) {
	body := generateRequest{FunnelID: funnelID, Resources: make([]resourcePayload, 0, len(resources))}
	for _, r := range resources {
		body.Resources = append(body.Resources, toPayload(r))
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call generation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("generation service returned %d: %s", resp.StatusCode,
			logutil.TruncateForLog(string(bytes.TrimSpace(body)), maxErrorSnippet))
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFlowResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	flow := funnel.Flow(out.Flow)
	if !json.Valid(flow) || string(flow) == "null" {
		return nil, fmt.Errorf("generation service returned no flow")
	}

	g.logger.Infow("flow generated by remote service",
		"funnel_id", funnelID,
		"resources", len(resources),
		"duration", time.Since(start),
	)
	return flow, nil
}
