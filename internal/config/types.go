package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Delayed  DelayedConfig  `json:"delayed"`
	Storage  StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserID is the only user allowed to drive the control surface.
	OwnerUserID int64 `json:"owner_user_id"`
	// MarkChatID is the channel that receives the recurring mark message.
	MarkChatID int64 `json:"mark_chat_id"`
	// DelayedChatID is the channel that receives one-shot delayed messages.
	DelayedChatID int64 `json:"delayed_chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ScheduleConfig controls the recurring mark scheduler.
//
// WindowStart/WindowEnd are clock strings ("HH:MM" or "HH:MM:SS") in
// Timezone. The random fire time is picked inside [start, end].
type ScheduleConfig struct {
	Timezone    string `json:"timezone"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	// Message is the initial mark text; the control surface can change it
	// at runtime without touching this file.
	Message string `json:"message"`
}

// DelayedConfig controls the delayed-message store.
type DelayedConfig struct {
	// DataDir holds the persisted record file and the attachments
	// subdirectory. Created on startup if missing.
	DataDir string `json:"data_dir"`
}

// StorageConfig controls the optional send-history database.
//
// If Path is empty, history recording is disabled.
type StorageConfig struct {
	Path string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite); 0 means default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
