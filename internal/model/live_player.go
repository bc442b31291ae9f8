package model

import (
	"encoding/json"
	"time"
)

// LivePlayer は配信中の選手のライブ出演状態を表す。
// 1選手につき1レコード。Coordinatesはトラッキング座標のJSONオブジェクトを
// そのまま保持する（形式はトラッキング側の都合で変わるため解釈しない）。
type LivePlayer struct {
	ID          string
	PlayerID    string
	ImageURL    string
	VideoURL    string
	IsActive    bool
	Coordinates json.RawMessage
	LastSeen    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
