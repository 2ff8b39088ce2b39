package syncengine

import (
	"time"

	"github.com/iudanet/possync/internal/models"
)

// Outcome исход обработки одного элемента очереди в проходе
type Outcome string

const (
	OutcomeSynced   Outcome = "synced"   // облако приняло мутацию
	OutcomeRetry    Outcome = "retry"    // временная ошибка, элемент снова pending
	OutcomeFailed   Outcome = "failed"   // попытки исчерпаны
	OutcomeConflict Outcome = "conflict" // записан конфликт
	OutcomeSkipped  Outcome = "skipped"  // элемент не обрабатывался в этом проходе
)

// Observer получает события engine. Методы вызываются синхронно из прохода,
// поэтому реализации не должны блокироваться.
type Observer interface {
	PassCompleted(result PassResult, duration time.Duration)
	ItemProcessed(item *models.SyncQueueItem, outcome Outcome)
	ConflictDetected(conflict *models.DataConflict)
}

func (e *Engine) notifyItem(item *models.SyncQueueItem, outcome Outcome) {
	for _, o := range e.observersSnapshot() {
		o.ItemProcessed(item, outcome)
	}
}

func (e *Engine) notifyConflict(c *models.DataConflict) {
	for _, o := range e.observersSnapshot() {
		o.ConflictDetected(c)
	}
}

func (e *Engine) notifyPass(res PassResult, d time.Duration) {
	for _, o := range e.observersSnapshot() {
		o.PassCompleted(res, d)
	}
}
