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

const defaultStoreBaseURL = "https://store.steampowered.com"

// ReviewsClient получает помесячную гистограмму рекомендаций из витрины.
type ReviewsClient struct {
	http    *http.Client
	baseURL string
}

// NewReviewsClient создаёт клиента. Пустой baseURL заменяется официальным.
func NewReviewsClient(baseURL string, timeout time.Duration) *ReviewsClient {
	if baseURL == "" {
		baseURL = defaultStoreBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ReviewsClient{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type histogramResponse struct {
	Success int `json:"success"`
	Results struct {
		Rollups []struct {
			Date           int64 `json:"date"`
			RecommendsUp   int   `json:"recommendations_up"`
			RecommendsDown int   `json:"recommendations_down"`
		} `json:"rollups"`
	} `json:"results"`
}

// FetchHistogram возвращает месячные корзины рекомендаций игры.
// success != 1 означает, что витрина не знает такого app id.
func (c *ReviewsClient) FetchHistogram(ctx context.Context, appID int64) ([]domain.ReviewMonth, error) {
	url := fmt.Sprintf("%s/appreviewhistogram/%d?l=english&review_score_preference=0", c.baseURL, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("steam_store", "review_histogram", "appreviewhistogram", start, err)
	if err != nil {
		return nil, fmt.Errorf("запрос гистограммы app=%d: %w", appID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrAppInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("гистограмма app=%d: статус %d", appID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа: %w", err)
	}
	var parsed histogramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("разбор ответа: %w", err)
	}
	if parsed.Success != 1 {
		return nil, domain.ErrAppInvalid
	}

	entries := make([]domain.ReviewMonth, 0, len(parsed.Results.Rollups))
	for _, rollup := range parsed.Results.Rollups {
		month := time.Unix(rollup.Date, 0).UTC()
		entries = append(entries, domain.ReviewMonth{
			AppID: appID,
			Month: time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC),
			Up:    rollup.RecommendsUp,
			Down:  rollup.RecommendsDown,
		})
	}
	return entries, nil
}
