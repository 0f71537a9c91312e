package domain

import (
	"context"
	"time"
)

// Источники общей синхронизации (не CCU). По ним ведутся отметки
// last_*_sync и выборка «кому пора».
const (
	SourceReviews  = "reviews"
	SourceSteamSpy = "steamspy"
)

// Источники значения CCU в daily_metrics.
const (
	CCUSourceSteamAPI = "steam_api"
	CCUSourceSteamSpy = "steamspy"
)

// CCUSource отдаёт текущее число игроков по игре.
// Возвращает ErrAppInvalid, если upstream явно не отслеживает id.
type CCUSource interface {
	FetchCCU(ctx context.Context, appID int64) (int, error)
}

// ReviewSource отдаёт помесячную гистограмму рекомендаций игры.
type ReviewSource interface {
	FetchHistogram(ctx context.Context, appID int64) ([]ReviewMonth, error)
}

// OwnersSnapshot — оценка владельцев и счётчики отзывов из SteamSpy.
type OwnersSnapshot struct {
	OwnersEstimate  int64
	PositiveReviews int
	NegativeReviews int
	CCU             int
}

// OwnersSource отдаёт оценку владельцев по игре.
type OwnersSource interface {
	FetchOwners(ctx context.Context, appID int64) (OwnersSnapshot, error)
}

// SyncStatusPage — страница статусов при постраничном обходе каталога.
type SyncStatusPage struct {
	Statuses  []SyncStatus
	LastAppID int64
}

// PriorityUpdate — результат пересчёта приоритета одной игры.
type PriorityUpdate struct {
	AppID             int64
	PriorityScore     int
	RefreshTier       RefreshTier
	SyncIntervalHours int
	CalculatedAt      time.Time
	NextSyncAfter     time.Time
}

// SyncStatusRepo управляет статусами синхронизации.
type SyncStatusRepo interface {
	// ListPage возвращает страницу статусов с app_id > afterAppID,
	// упорядоченную по app_id. Пустая страница означает конец каталога.
	ListPage(ctx context.Context, afterAppID int64, limit int) (SyncStatusPage, error)
	// ListDueForSource возвращает игры, которым пора синхронизироваться
	// из источника: is_syncable, отметка источника старше интервала либо пуста.
	// Сортировка по приоритету по убыванию.
	ListDueForSource(ctx context.Context, source string, now time.Time, limit int) ([]SyncStatus, error)
	// UpsertPriorities батчево записывает результаты пересчёта приоритетов.
	UpsertPriorities(ctx context.Context, updates []PriorityUpdate) error
	// MarkSourceSynced проставляет отметку last_*_sync и сбрасывает счётчик ошибок.
	MarkSourceSynced(ctx context.Context, source string, appIDs []int64, syncedAt time.Time) error
	// IncrementErrors увеличивает consecutive_errors у перечисленных игр.
	IncrementErrors(ctx context.Context, appIDs []int64) error
}

// CCUTierRepo управляет ярусами опроса CCU. Раскладку по ярусам считает
// планировщик, репозиторий отдаёт сигналы и записывает результат целиком.
type CCUTierRepo interface {
	// CountAssignments возвращает число игр, распределённых по ярусам.
	CountAssignments(ctx context.Context) (int, error)
	// ListCatalogAppIDs возвращает app id всего каталога.
	ListCatalogAppIDs(ctx context.Context) ([]int64, error)
	// ListTopByPeak возвращает до limit app id по убыванию последнего пика CCU.
	ListTopByPeak(ctx context.Context, limit int) ([]int64, error)
	// ListRecentReleases возвращает до limit app id самых свежих релизов.
	ListRecentReleases(ctx context.Context, limit int) ([]int64, error)
	// ReplaceAssignments целиком записывает новую раскладку, сохраняя
	// fetch_status и skip_until существующих строк. Игры, отсутствующие
	// в раскладке, удаляются из назначений.
	ReplaceAssignments(ctx context.Context, tiers map[int64]int) error
	// ListTierAppIDs возвращает app id указанного яруса.
	ListTierAppIDs(ctx context.Context, tier int) ([]int64, error)
	// ListDailyCandidates возвращает ярус 3 без игр, у которых skip_until в будущем.
	ListDailyCandidates(ctx context.Context, now time.Time) ([]int64, error)
	// SetFetchOutcomes применяет классификацию результатов опроса:
	// valid сбрасывает skip_until, invalid получает переданный skip_until.
	SetFetchOutcomes(ctx context.Context, validIDs, invalidIDs []int64, skipUntil time.Time) error
}

// DailyMetricRepo управляет дневными метриками.
type DailyMetricRepo interface {
	// GetCCUPeaks возвращает сохранённые пики CCU за день по списку игр.
	// Отсутствие строки означает 0.
	GetCCUPeaks(ctx context.Context, day time.Time, appIDs []int64) (map[int64]int, error)
	// UpsertCCUPeaks записывает пики за день. Вызывающая сторона обязана
	// заранее отфильтровать значения меньше сохранённых.
	UpsertCCUPeaks(ctx context.Context, day time.Time, source string, peaks map[int64]int) error
	// UpsertOwnerCounts записывает оценку владельцев и счётчики отзывов за день.
	UpsertOwnerCounts(ctx context.Context, day time.Time, snapshots map[int64]OwnersSnapshot) error
	// LatestMetrics возвращает последнюю дневную метрику каждой игры.
	LatestMetrics(ctx context.Context, appIDs []int64) (map[int64]DailyMetric, error)
}

// ReviewRepo управляет гистограммами отзывов.
type ReviewRepo interface {
	// UpsertHistogram записывает месячные корзины игры.
	UpsertHistogram(ctx context.Context, appID int64, entries []ReviewMonth) error
	// GetHistogram возвращает полную гистограмму игры, новые месяцы первыми.
	GetHistogram(ctx context.Context, appID int64) ([]ReviewMonth, error)
}

// TrendRepo управляет производными трендами.
type TrendRepo interface {
	// UpsertTrend целиком замещает строку тренда игры.
	UpsertTrend(ctx context.Context, trend GameTrend) error
	// LatestTrends возвращает текущие тренды по списку игр.
	LatestTrends(ctx context.Context, appIDs []int64) (map[int64]GameTrend, error)
}

// Cache — простое TTL-хранилище для межпроцессных замков и справочников.
type Cache interface {
	// Once выполняет функцию, если ключ ещё не занят, и держит его ttl.
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
