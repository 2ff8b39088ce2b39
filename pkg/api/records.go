package api

// ApplyRequest мутация, которую терминал воспроизводит в облаке
type ApplyRequest struct {
	Payload   map[string]any `json:"payload"`
	Operation string         `json:"operation"` // INSERT, UPDATE или DELETE
	RecordID  string         `json:"record_id,omitempty"`
	Overwrite bool           `json:"overwrite,omitempty"`
}

// RecordResponse одна запись
type RecordResponse struct {
	Record map[string]any `json:"record"`
}

// RecordsResponse список записей таблицы
type RecordsResponse struct {
	Records []map[string]any `json:"records"`
}

// ConflictResponse тело ответа 409/404 на мутацию
type ConflictResponse struct {
	Remote map[string]any `json:"remote,omitempty"` // текущая облачная запись
	Error  string         `json:"error"`
	Kind   string         `json:"kind"` // duplicate или not_found
}

// OperationRequest запрос доменного слоя к роутеру терминала
type OperationRequest struct {
	Payload   map[string]any `json:"payload,omitempty"`
	Operation string         `json:"operation"` // create, update, delete, read
	RecordID  string         `json:"record_id,omitempty"`
}

// OperationResponse результат маршрутизации операции
type OperationResponse struct {
	Data        any    `json:"data,omitempty"`
	SyncStatus  string `json:"sync_status"`
	Error       string `json:"error,omitempty"`
	QueueItemID string `json:"queue_item_id,omitempty"`
	Success     bool   `json:"success"`
}
