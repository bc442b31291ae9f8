package vision

import (
	"sync"

	"github.com/hitoshi/matchside/internal/model"
)

// defaultMemoryCap は解析履歴の保持上限。
const defaultMemoryCap = 50

// Memory は解析履歴の有界リングメモリ。
// 上限を超えると最古のレコードから捨てる。スレッドセーフ。
type Memory struct {
	mu      sync.RWMutex
	records []model.AnalysisRecord
	cap     int
}

// NewMemory は上限capのMemoryを生成する。capが0以下の場合は既定値を使う。
func NewMemory(cap int) *Memory {
	if cap <= 0 {
		cap = defaultMemoryCap
	}
	return &Memory{
		records: make([]model.AnalysisRecord, 0, cap),
		cap:     cap,
	}
}

// Append は解析レコードを追加する。上限超過時は最古のレコードを捨てる。
func (m *Memory) Append(record model.AnalysisRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, record)
	if len(m.records) > m.cap {
		// 先頭（最古）を落とす。スライスの底へのコピーで再確保を避ける。
		copy(m.records, m.records[1:])
		m.records = m.records[:m.cap]
	}
}

// List は解析履歴を新しい順のコピーで返す。
func (m *Memory) List() []model.AnalysisRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.AnalysisRecord, len(m.records))
	for i, r := range m.records {
		out[len(m.records)-1-i] = r
	}
	return out
}

// Len は保持中のレコード数を返す。
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
