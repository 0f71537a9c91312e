package domain

import "time"

// RefreshTier описывает частоту общей синхронизации игры.
type RefreshTier string

const (
	// RefreshTierActive — активные игры, синхронизация каждые 6–12 часов.
	RefreshTierActive RefreshTier = "active"
	// RefreshTierModerate — умеренно активные, каждые 24–48 часов.
	RefreshTierModerate RefreshTier = "moderate"
	// RefreshTierDormant — спящие, раз в неделю.
	RefreshTierDormant RefreshTier = "dormant"
	// RefreshTierDead — мёртвые, без положительных сигналов.
	RefreshTierDead RefreshTier = "dead"
)

// Game описывает игру каталога. Создаётся отдельным синком каталога,
// ядро её только читает.
type Game struct {
	AppID      int64
	Name       string
	ReleasedAt *time.Time
	CreatedAt  time.Time
}

// SyncStatus хранит метаданные планирования для одной игры.
type SyncStatus struct {
	AppID                int64
	PriorityScore        int
	SyncIntervalHours    int
	RefreshTier          RefreshTier
	PriorityCalculatedAt *time.Time
	NextSyncAfter        *time.Time
	LastReviewsSync      *time.Time
	LastSteamSpySync     *time.Time
	ConsecutiveErrors    int
	IsSyncable           bool
}

// NeverSynced возвращает true, если игру ещё ни разу не синхронизировал
// ни один основной источник.
func (s SyncStatus) NeverSynced() bool {
	return s.LastReviewsSync == nil && s.LastSteamSpySync == nil
}

// FetchStatus — результат последнего обращения к источнику CCU по игре.
type FetchStatus string

const (
	// FetchStatusValid — источник вернул значение.
	FetchStatusValid FetchStatus = "valid"
	// FetchStatusInvalid — источник явно сообщил, что id не отслеживается.
	FetchStatusInvalid FetchStatus = "invalid"
	// FetchStatusUnknown — к источнику ещё не обращались.
	FetchStatusUnknown FetchStatus = "unknown"
)

// CCUTierAssignment — назначение игры в один из трёх ярусов опроса CCU.
type CCUTierAssignment struct {
	AppID       int64
	Tier        int
	FetchStatus FetchStatus
	SkipUntil   *time.Time
}

// DailyMetric — дневной срез метрик игры. Пара (AppID, Day) уникальна,
// CCUPeak в пределах дня только растёт (merge «keep-max»).
type DailyMetric struct {
	AppID           int64
	Day             time.Time
	CCUPeak         int
	CCUSource       string
	OwnersEstimate  int64
	PositiveReviews int
	NegativeReviews int
}

// ReviewMonth — месячная корзина гистограммы рекомендаций.
// Закрытые месяцы неизменны, текущий месяц перезаписывается.
type ReviewMonth struct {
	AppID int64
	Month time.Time
	Up    int
	Down  int
}

// Total возвращает суммарное число рекомендаций за месяц.
func (m ReviewMonth) Total() int {
	return m.Up + m.Down
}

// TrendDirection — направление тренда отзывов.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// GameTrend — производные показатели по полной гистограмме игры.
// Всегда пересчитывается целиком и замещает предыдущую строку.
type GameTrend struct {
	AppID             int64
	Direction30d      TrendDirection
	ChangePct30d      float64
	Direction90d      TrendDirection
	ChangePct90d      float64
	CurrentRatio      float64
	PreviousRatio     float64
	ReviewVelocity7d  float64
	ReviewVelocity30d float64
	CalculatedAt      time.Time
}
