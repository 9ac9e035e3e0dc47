package domain

import "time"

// MigrationStatus はマイグレーションの適用状態を表す
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration は台帳スキーマのマイグレーションを表す
type Migration struct {
	Version   string // 例: "001"
	Name      string // ファイル名から抽出
	FilePath  string
	AppliedAt *time.Time // 未適用ならnil
	Status    MigrationStatus
}

// IsApplied は適用済みかを返す。
func (m *Migration) IsApplied() bool {
	return m.Status == MigrationStatusApplied
}
