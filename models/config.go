package models

// Config holds server, database and gameplay settings loaded from config.json.
type Config struct {
	ServerPort string `json:"server_port"`

	DBHost     string `json:"db_host"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	AnswerWindowSeconds int    `json:"answer_window_seconds"`
	LobbyCapacity       int    `json:"lobby_capacity"`
	SweepIntervalMillis int    `json:"sweep_interval_millis"`
	AdvanceWorkers      int    `json:"advance_workers"`
	CodeAttempts        int    `json:"code_attempts"`
	ReaperSchedule      string `json:"reaper_schedule"`
}
