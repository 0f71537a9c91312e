package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

// Postgres реализует репозитории ядра на основе pgxpool. Все записи —
// идемпотентные батчевые upsert'ы, чтения постраничные: хранилище может
// ограничивать размер выборки, полнота одной выборки не предполагается.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.SyncJobRepo     = (*Postgres)(nil)
	_ domain.SyncStatusRepo  = (*Postgres)(nil)
	_ domain.CCUTierRepo     = (*Postgres)(nil)
	_ domain.DailyMetricRepo = (*Postgres)(nil)
	_ domain.ReviewRepo      = (*Postgres)(nil)
	_ domain.TrendRepo       = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 30*time.Second)
}

// --- SyncJobRepo ---

// CreateJob регистрирует запуск воркера в состоянии running.
func (p *Postgres) CreateJob(ctx context.Context, jobType, runID string, batchSize int) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var id int64
	err := p.pool.QueryRow(ctx, `
INSERT INTO sync_jobs (job_type, status, started_at, batch_size, run_id)
VALUES ($1, 'running', now(), $2, $3)
RETURNING id
`, jobType, batchSize, runID).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "sync_jobs_insert", "sync_jobs", start, err)
	if err != nil {
		return 0, fmt.Errorf("создание записи о запуске: %w", err)
	}
	return id, nil
}

// CompleteJob переводит запись о запуске в completed. Переход выполняется
// только из running: терминальные записи не перезаписываются.
func (p *Postgres) CompleteJob(ctx context.Context, jobID int64, c domain.SyncJobCounters, metadata map[string]any) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE sync_jobs
SET status = 'completed', completed_at = now(),
    items_processed = $2, items_succeeded = $3, items_failed = $4,
    items_created = $5, items_updated = $6, items_skipped = $7,
    metadata = $8
WHERE id = $1 AND status = 'running'
`, jobID, c.Processed, c.Succeeded, c.Failed, c.Created, c.Updated, c.Skipped, payload)
	metrics.ObserveNetworkRequest("postgres", "sync_jobs_complete", "sync_jobs", start, err)
	return err
}

// FailJob переводит запись о запуске в failed с частичными счётчиками.
func (p *Postgres) FailJob(ctx context.Context, jobID int64, c domain.SyncJobCounters, errorMessage string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE sync_jobs
SET status = 'failed', completed_at = now(),
    items_processed = $2, items_succeeded = $3, items_failed = $4,
    items_created = $5, items_updated = $6, items_skipped = $7,
    error_message = $8
WHERE id = $1 AND status = 'running'
`, jobID, c.Processed, c.Succeeded, c.Failed, c.Created, c.Updated, c.Skipped, errorMessage)
	metrics.ObserveNetworkRequest("postgres", "sync_jobs_fail", "sync_jobs", start, err)
	return err
}

// --- SyncStatusRepo ---

const syncStatusColumns = `app_id, priority_score, sync_interval_hours, refresh_tier,
priority_calculated_at, next_sync_after, last_reviews_sync, last_steamspy_sync,
consecutive_errors, is_syncable`

func scanSyncStatus(rows pgx.Rows) (domain.SyncStatus, error) {
	var st domain.SyncStatus
	err := rows.Scan(&st.AppID, &st.PriorityScore, &st.SyncIntervalHours, &st.RefreshTier,
		&st.PriorityCalculatedAt, &st.NextSyncAfter, &st.LastReviewsSync, &st.LastSteamSpySync,
		&st.ConsecutiveErrors, &st.IsSyncable)
	return st, err
}

// ListPage возвращает страницу статусов по возрастанию app_id.
func (p *Postgres) ListPage(ctx context.Context, afterAppID int64, limit int) (domain.SyncStatusPage, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+syncStatusColumns+`
FROM sync_statuses
WHERE app_id > $1
ORDER BY app_id
LIMIT $2
`, afterAppID, limit)
	metrics.ObserveNetworkRequest("postgres", "sync_statuses_page", "sync_statuses", start, err)
	if err != nil {
		return domain.SyncStatusPage{}, err
	}
	defer rows.Close()

	var page domain.SyncStatusPage
	for rows.Next() {
		st, err := scanSyncStatus(rows)
		if err != nil {
			return domain.SyncStatusPage{}, err
		}
		page.Statuses = append(page.Statuses, st)
		page.LastAppID = st.AppID
	}
	return page, rows.Err()
}

func sourceSyncColumn(source string) (string, error) {
	switch source {
	case domain.SourceReviews:
		return "last_reviews_sync", nil
	case domain.SourceSteamSpy:
		return "last_steamspy_sync", nil
	default:
		return "", fmt.Errorf("неизвестный источник %q", source)
	}
}

// ListDueForSource возвращает игры, которым пора синхронизироваться.
func (p *Postgres) ListDueForSource(ctx context.Context, source string, now time.Time, limit int) ([]domain.SyncStatus, error) {
	column, err := sourceSyncColumn(source)
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+syncStatusColumns+`
FROM sync_statuses
WHERE is_syncable
  AND (`+column+` IS NULL OR `+column+` + make_interval(hours => sync_interval_hours) <= $1)
ORDER BY priority_score DESC, app_id
LIMIT $2
`, now, limit)
	metrics.ObserveNetworkRequest("postgres", "sync_statuses_due", "sync_statuses", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.SyncStatus
	for rows.Next() {
		st, err := scanSyncStatus(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, st)
	}
	return due, rows.Err()
}

// UpsertPriorities батчево записывает результаты пересчёта приоритетов.
func (p *Postgres) UpsertPriorities(ctx context.Context, updates []domain.PriorityUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
INSERT INTO sync_statuses (app_id, priority_score, refresh_tier, sync_interval_hours, priority_calculated_at, next_sync_after, is_syncable)
VALUES ($1, $2, $3, $4, $5, $6, true)
ON CONFLICT (app_id) DO UPDATE
SET priority_score = EXCLUDED.priority_score,
    refresh_tier = EXCLUDED.refresh_tier,
    sync_interval_hours = EXCLUDED.sync_interval_hours,
    priority_calculated_at = EXCLUDED.priority_calculated_at,
    next_sync_after = EXCLUDED.next_sync_after
`, u.AppID, u.PriorityScore, u.RefreshTier, u.SyncIntervalHours, u.CalculatedAt, u.NextSyncAfter)
	}

	start := time.Now()
	err := p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "sync_statuses_upsert", "sync_statuses", start, err)
	return err
}

// MarkSourceSynced проставляет отметку последнего синка источника и
// сбрасывает счётчик подряд идущих ошибок.
func (p *Postgres) MarkSourceSynced(ctx context.Context, source string, appIDs []int64, syncedAt time.Time) error {
	if len(appIDs) == 0 {
		return nil
	}
	column, err := sourceSyncColumn(source)
	if err != nil {
		return err
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
UPDATE sync_statuses
SET `+column+` = $1, consecutive_errors = 0
WHERE app_id = ANY($2)
`, syncedAt, appIDs)
	metrics.ObserveNetworkRequest("postgres", "sync_statuses_mark", "sync_statuses", start, err)
	return err
}

// IncrementErrors увеличивает consecutive_errors у перечисленных игр.
func (p *Postgres) IncrementErrors(ctx context.Context, appIDs []int64) error {
	if len(appIDs) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE sync_statuses
SET consecutive_errors = consecutive_errors + 1
WHERE app_id = ANY($1)
`, appIDs)
	metrics.ObserveNetworkRequest("postgres", "sync_statuses_errors", "sync_statuses", start, err)
	return err
}

// --- CCUTierRepo ---

// CountAssignments возвращает число распределённых игр.
func (p *Postgres) CountAssignments(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var count int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM ccu_tier_assignments`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "ccu_tiers_count", "ccu_tier_assignments", start, err)
	return count, err
}

// ListCatalogAppIDs возвращает app id всего каталога.
func (p *Postgres) ListCatalogAppIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT app_id FROM games ORDER BY app_id`)
	metrics.ObserveNetworkRequest("postgres", "games_ids", "games", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ListTopByPeak возвращает до limit app id по убыванию последнего пика CCU.
func (p *Postgres) ListTopByPeak(ctx context.Context, limit int) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT m.app_id
FROM (
    SELECT DISTINCT ON (app_id) app_id, ccu_peak
    FROM daily_metrics
    ORDER BY app_id, day DESC
) m
ORDER BY m.ccu_peak DESC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "daily_metrics_top", "daily_metrics", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ListRecentReleases возвращает до limit app id самых свежих релизов.
func (p *Postgres) ListRecentReleases(ctx context.Context, limit int) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT app_id FROM games ORDER BY released_at DESC NULLS LAST LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "games_recent", "games", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ReplaceAssignments целиком записывает раскладку ярусов. Upsert меняет
// только tier: fetch_status и skip_until переживают суточную перестройку.
// Игры, выпавшие из раскладки, удаляются из назначений.
func (p *Postgres) ReplaceAssignments(ctx context.Context, tiers map[int64]int) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	appIDs := make([]int64, 0, len(tiers))
	batch := &pgx.Batch{}
	for appID, tier := range tiers {
		appIDs = append(appIDs, appID)
		batch.Queue(`
INSERT INTO ccu_tier_assignments (app_id, tier, fetch_status)
VALUES ($1, $2, 'unknown')
ON CONFLICT (app_id) DO UPDATE SET tier = EXCLUDED.tier
`, appID, tier)
	}

	start := time.Now()
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("запись раскладки: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `
DELETE FROM ccu_tier_assignments WHERE NOT (app_id = ANY($1))
`, appIDs); err != nil {
			return fmt.Errorf("очистка назначений: %w", err)
		}
		return nil
	})
	metrics.ObserveNetworkRequest("postgres", "ccu_tiers_replace", "ccu_tier_assignments", start, err)
	return err
}

// ListTierAppIDs возвращает app id указанного яруса.
func (p *Postgres) ListTierAppIDs(ctx context.Context, tier int) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT app_id FROM ccu_tier_assignments WHERE tier = $1 ORDER BY app_id
`, tier)
	metrics.ObserveNetworkRequest("postgres", "ccu_tiers_list", "ccu_tier_assignments", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ListDailyCandidates возвращает ярус 3 без игр со skip_until в будущем.
func (p *Postgres) ListDailyCandidates(ctx context.Context, now time.Time) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT app_id
FROM ccu_tier_assignments
WHERE tier = 3 AND (skip_until IS NULL OR skip_until <= $1)
ORDER BY app_id
`, now)
	metrics.ObserveNetworkRequest("postgres", "ccu_tiers_daily", "ccu_tier_assignments", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// SetFetchOutcomes применяет классификацию результатов опроса.
func (p *Postgres) SetFetchOutcomes(ctx context.Context, validIDs, invalidIDs []int64, skipUntil time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if len(validIDs) > 0 {
			if _, err := tx.Exec(ctx, `
UPDATE ccu_tier_assignments
SET fetch_status = 'valid', skip_until = NULL
WHERE app_id = ANY($1)
`, validIDs); err != nil {
				return err
			}
		}
		if len(invalidIDs) > 0 {
			if _, err := tx.Exec(ctx, `
UPDATE ccu_tier_assignments
SET fetch_status = 'invalid', skip_until = $2
WHERE app_id = ANY($1)
`, invalidIDs, skipUntil); err != nil {
				return err
			}
		}
		return nil
	})
	metrics.ObserveNetworkRequest("postgres", "ccu_tiers_outcomes", "ccu_tier_assignments", start, err)
	return err
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- DailyMetricRepo ---

// GetCCUPeaks возвращает сохранённые пики за день. Отсутствующие строки
// в карту не попадают.
func (p *Postgres) GetCCUPeaks(ctx context.Context, day time.Time, appIDs []int64) (map[int64]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT app_id, ccu_peak FROM daily_metrics WHERE day = $1 AND app_id = ANY($2)
`, day, appIDs)
	metrics.ObserveNetworkRequest("postgres", "daily_metrics_peaks", "daily_metrics", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	peaks := make(map[int64]int, len(appIDs))
	for rows.Next() {
		var appID int64
		var peak int
		if err := rows.Scan(&appID, &peak); err != nil {
			return nil, err
		}
		peaks[appID] = peak
	}
	return peaks, rows.Err()
}

// UpsertCCUPeaks записывает пики за день. Keep-max продублирован условием
// на стороне БД: даже при гонке двух писателей пик не уменьшится.
func (p *Postgres) UpsertCCUPeaks(ctx context.Context, day time.Time, source string, peaks map[int64]int) error {
	if len(peaks) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for appID, peak := range peaks {
		batch.Queue(`
INSERT INTO daily_metrics (app_id, day, ccu_peak, ccu_source)
VALUES ($1, $2, $3, $4)
ON CONFLICT (app_id, day) DO UPDATE
SET ccu_peak = EXCLUDED.ccu_peak, ccu_source = EXCLUDED.ccu_source
WHERE daily_metrics.ccu_peak <= EXCLUDED.ccu_peak
`, appID, day, peak, source)
	}

	start := time.Now()
	err := p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "daily_metrics_upsert", "daily_metrics", start, err)
	return err
}

// UpsertOwnerCounts записывает оценку владельцев и счётчики отзывов за день.
func (p *Postgres) UpsertOwnerCounts(ctx context.Context, day time.Time, snapshots map[int64]domain.OwnersSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for appID, snap := range snapshots {
		batch.Queue(`
INSERT INTO daily_metrics (app_id, day, owners_estimate, positive_reviews, negative_reviews)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (app_id, day) DO UPDATE
SET owners_estimate = EXCLUDED.owners_estimate,
    positive_reviews = EXCLUDED.positive_reviews,
    negative_reviews = EXCLUDED.negative_reviews
`, appID, day, snap.OwnersEstimate, snap.PositiveReviews, snap.NegativeReviews)
	}

	start := time.Now()
	err := p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "daily_metrics_owners", "daily_metrics", start, err)
	return err
}

// LatestMetrics возвращает последнюю дневную метрику каждой игры.
func (p *Postgres) LatestMetrics(ctx context.Context, appIDs []int64) (map[int64]domain.DailyMetric, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT ON (app_id) app_id, day, ccu_peak, coalesce(ccu_source, ''), owners_estimate, positive_reviews, negative_reviews
FROM daily_metrics
WHERE app_id = ANY($1)
ORDER BY app_id, day DESC
`, appIDs)
	metrics.ObserveNetworkRequest("postgres", "daily_metrics_latest", "daily_metrics", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]domain.DailyMetric, len(appIDs))
	for rows.Next() {
		var m domain.DailyMetric
		if err := rows.Scan(&m.AppID, &m.Day, &m.CCUPeak, &m.CCUSource, &m.OwnersEstimate, &m.PositiveReviews, &m.NegativeReviews); err != nil {
			return nil, err
		}
		out[m.AppID] = m
	}
	return out, rows.Err()
}

// --- ReviewRepo ---

// UpsertHistogram записывает месячные корзины игры.
func (p *Postgres) UpsertHistogram(ctx context.Context, appID int64, entries []domain.ReviewMonth) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
INSERT INTO review_histogram (app_id, month, recommendations_up, recommendations_down)
VALUES ($1, $2, $3, $4)
ON CONFLICT (app_id, month) DO UPDATE
SET recommendations_up = EXCLUDED.recommendations_up,
    recommendations_down = EXCLUDED.recommendations_down
`, appID, e.Month, e.Up, e.Down)
	}

	start := time.Now()
	err := p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "review_histogram_upsert", "review_histogram", start, err)
	return err
}

// GetHistogram возвращает полную гистограмму игры, новые месяцы первыми.
func (p *Postgres) GetHistogram(ctx context.Context, appID int64) ([]domain.ReviewMonth, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT app_id, month, recommendations_up, recommendations_down
FROM review_histogram
WHERE app_id = $1
ORDER BY month DESC
`, appID)
	metrics.ObserveNetworkRequest("postgres", "review_histogram_get", "review_histogram", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ReviewMonth
	for rows.Next() {
		var e domain.ReviewMonth
		if err := rows.Scan(&e.AppID, &e.Month, &e.Up, &e.Down); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- TrendRepo ---

// UpsertTrend целиком замещает строку тренда игры.
func (p *Postgres) UpsertTrend(ctx context.Context, t domain.GameTrend) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO game_trends (app_id, direction_30d, change_pct_30d, direction_90d, change_pct_90d,
    current_ratio, previous_ratio, review_velocity_7d, review_velocity_30d, calculated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (app_id) DO UPDATE
SET direction_30d = EXCLUDED.direction_30d,
    change_pct_30d = EXCLUDED.change_pct_30d,
    direction_90d = EXCLUDED.direction_90d,
    change_pct_90d = EXCLUDED.change_pct_90d,
    current_ratio = EXCLUDED.current_ratio,
    previous_ratio = EXCLUDED.previous_ratio,
    review_velocity_7d = EXCLUDED.review_velocity_7d,
    review_velocity_30d = EXCLUDED.review_velocity_30d,
    calculated_at = EXCLUDED.calculated_at
`, t.AppID, t.Direction30d, t.ChangePct30d, t.Direction90d, t.ChangePct90d,
		t.CurrentRatio, t.PreviousRatio, t.ReviewVelocity7d, t.ReviewVelocity30d, t.CalculatedAt)
	metrics.ObserveNetworkRequest("postgres", "game_trends_upsert", "game_trends", start, err)
	return err
}

// LatestTrends возвращает текущие тренды по списку игр.
func (p *Postgres) LatestTrends(ctx context.Context, appIDs []int64) (map[int64]domain.GameTrend, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT app_id, direction_30d, change_pct_30d, direction_90d, change_pct_90d,
    current_ratio, previous_ratio, review_velocity_7d, review_velocity_30d, calculated_at
FROM game_trends
WHERE app_id = ANY($1)
`, appIDs)
	metrics.ObserveNetworkRequest("postgres", "game_trends_latest", "game_trends", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]domain.GameTrend, len(appIDs))
	for rows.Next() {
		var t domain.GameTrend
		if err := rows.Scan(&t.AppID, &t.Direction30d, &t.ChangePct30d, &t.Direction90d, &t.ChangePct90d,
			&t.CurrentRatio, &t.PreviousRatio, &t.ReviewVelocity7d, &t.ReviewVelocity30d, &t.CalculatedAt); err != nil {
			return nil, err
		}
		out[t.AppID] = t
	}
	return out, rows.Err()
}
