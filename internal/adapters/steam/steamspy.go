package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

const defaultSpyBaseURL = "https://steamspy.com"

// SpyClient получает оценку владельцев и счётчики отзывов из SteamSpy.
type SpyClient struct {
	http    *http.Client
	baseURL string
}

// NewSpyClient создаёт клиента. Пустой baseURL заменяется официальным.
func NewSpyClient(baseURL string, timeout time.Duration) *SpyClient {
	if baseURL == "" {
		baseURL = defaultSpyBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SpyClient{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type spyResponse struct {
	AppID    int64  `json:"appid"`
	Name     string `json:"name"`
	Owners   string `json:"owners"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	CCU      int    `json:"ccu"`
}

// FetchOwners возвращает снапшот SteamSpy по игре. Пустое имя при нулевых
// счётчиках означает неизвестный app id.
func (c *SpyClient) FetchOwners(ctx context.Context, appID int64) (domain.OwnersSnapshot, error) {
	url := fmt.Sprintf("%s/api.php?request=appdetails&appid=%d", c.baseURL, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.OwnersSnapshot{}, fmt.Errorf("создание запроса: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("steamspy", "appdetails", "api.php", start, err)
	if err != nil {
		return domain.OwnersSnapshot{}, fmt.Errorf("запрос SteamSpy app=%d: %w", appID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.OwnersSnapshot{}, fmt.Errorf("SteamSpy app=%d: статус %d", appID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OwnersSnapshot{}, fmt.Errorf("чтение ответа: %w", err)
	}
	var parsed spyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.OwnersSnapshot{}, fmt.Errorf("разбор ответа: %w", err)
	}
	// SteamSpy отвечает пустой записью на неизвестные id.
	if parsed.Name == "" && parsed.Owners == "" {
		return domain.OwnersSnapshot{}, domain.ErrAppInvalid
	}

	return domain.OwnersSnapshot{
		OwnersEstimate:  parseOwnersRange(parsed.Owners),
		PositiveReviews: parsed.Positive,
		NegativeReviews: parsed.Negative,
		CCU:             parsed.CCU,
	}, nil
}

// parseOwnersRange переводит диапазон вида "1,000,000 .. 2,000,000"
// в середину диапазона. Непарсящиеся строки дают 0.
func parseOwnersRange(raw string) int64 {
	parts := strings.Split(raw, "..")
	if len(parts) != 2 {
		return parseOwnersNumber(raw)
	}
	low := parseOwnersNumber(parts[0])
	high := parseOwnersNumber(parts[1])
	if low == 0 && high == 0 {
		return 0
	}
	return (low + high) / 2
}

func parseOwnersNumber(raw string) int64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
