package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

const defaultAPIBaseURL = "https://api.steampowered.com"

// CCUClient получает текущее число игроков из официального API.
type CCUClient struct {
	http    *http.Client
	baseURL string
}

// NewCCUClient создаёт клиента. Пустой baseURL заменяется официальным.
func NewCCUClient(baseURL string, timeout time.Duration) *CCUClient {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &CCUClient{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type currentPlayersResponse struct {
	Response struct {
		PlayerCount int `json:"player_count"`
		Result      int `json:"result"`
	} `json:"response"`
}

// FetchCCU возвращает текущее число игроков. result != 1 в теле ответа
// означает, что API не отслеживает этот app id — возвращается ErrAppInvalid.
func (c *CCUClient) FetchCCU(ctx context.Context, appID int64) (int, error) {
	url := fmt.Sprintf("%s/ISteamUserStats/GetNumberOfCurrentPlayers/v1/?appid=%d", c.baseURL, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("создание запроса: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("steam_api", "current_players", "ISteamUserStats", start, err)
	if err != nil {
		return 0, fmt.Errorf("запрос числа игроков app=%d: %w", appID, err)
	}
	defer resp.Body.Close()

	// API отвечает 404 на неизвестные app id.
	if resp.StatusCode == http.StatusNotFound {
		return 0, domain.ErrAppInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("число игроков app=%d: статус %d", appID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("чтение ответа: %w", err)
	}
	var parsed currentPlayersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("разбор ответа: %w", err)
	}
	if parsed.Response.Result != 1 {
		return 0, domain.ErrAppInvalid
	}
	return parsed.Response.PlayerCount, nil
}
