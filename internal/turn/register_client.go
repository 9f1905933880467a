package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const registerTimeout = 10 * time.Second

type RegisterResponse struct {
	AgentID    string `json:"agent_id"`
	VisitURL   string `json:"visit_url"`
	AgentWSURL string `json:"agent_ws_url"`
}

// RegisterClient obtains the agent websocket URL from the bridge. The
// token, when set, rides along as a bearer credential.
type RegisterClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewRegisterClient(baseURL, token string) *RegisterClient {
	return &RegisterClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: registerTimeout},
	}
}

func (c *RegisterClient) Register(ctx context.Context, agentName string) (RegisterResponse, error) {
	body, err := json.Marshal(map[string]string{"name": strings.TrimSpace(agentName)})
	if err != nil {
		return RegisterResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/agents/register", bytes.NewReader(body))
	if err != nil {
		return RegisterResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return RegisterResponse{}, err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return RegisterResponse{}, fmt.Errorf("register failed with status: %d", res.StatusCode)
	}

	var out RegisterResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return RegisterResponse{}, err
	}
	if strings.TrimSpace(out.AgentWSURL) == "" {
		return RegisterResponse{}, fmt.Errorf("register response missing agent_ws_url")
	}
	return out, nil
}
