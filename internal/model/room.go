package model

import "time"

// RoomStatus はライブルームの状態を表す。
type RoomStatus string

const (
	// RoomStatusActive は参加可能なルーム。
	RoomStatusActive RoomStatus = "ACTIVE"
	// RoomStatusEnded は配信終了したルーム。
	RoomStatusEnded RoomStatus = "ENDED"
)

// IsValid はRoomStatusが定義済みの値であるかを返す。
func (s RoomStatus) IsValid() bool {
	return s == RoomStatusActive || s == RoomStatusEnded
}

// LiveRoom はメディアプロバイダ上のライブルームを表す。
// RoomIDはルーム名から正規化した識別子で、同じ名前は常に同じRoomIDになる。
type LiveRoom struct {
	ID        string
	Name      string
	RoomID    string
	Status    RoomStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
