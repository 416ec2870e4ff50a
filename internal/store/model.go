// Package store persists relay instance and forward-pair configuration in
// SQLite.
package store

// Instance is one relay worker: a QQ bot account bridged to a Telegram bot.
type Instance struct {
	ID       int64  `json:"id"`
	Owner    int64  `json:"owner"`
	WorkMode string `json:"workMode"`
	IsSetup  bool   `json:"isSetup"`
	QQBot    QQBot  `json:"qqBot"`

	// PairCount and Status are derived at read time, never written.
	PairCount int64  `json:"pairCount"`
	Status    string `json:"status,omitempty"`
}

// QQBot holds the QQ side of an instance.
type QQBot struct {
	Uin   int64  `json:"uin"`
	Type  string `json:"type"`
	WSURL string `json:"wsUrl"`
}

// Pair links one QQ room to one Telegram chat under an instance.
type Pair struct {
	ID         int64 `json:"id"`
	InstanceID int64 `json:"instanceId"`
	QQRoomID   int64 `json:"qqRoomId"`
	TGChatID   int64 `json:"tgChatId"`
	Enabled    bool  `json:"enabled"`
}

// Bot connector types.
const (
	BotTypeOICQ   = "oicq"
	BotTypeNapCat = "napcat"
)
