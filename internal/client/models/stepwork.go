package models

import "time"

// StepWork is an answer to one program step prompt. The answer is the most
// sensitive content in the app and is stored only encrypted.
type StepWork struct {
	ID     string
	UserID string

	// StepNumber is the program step (1..12).
	StepNumber int

	// Prompt is the question text; not sensitive, it comes from the program
	// material itself.
	Prompt string

	// AnswerEnc holds the encrypted answer, nil while still blank.
	AnswerEnc *string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	RemoteID   *string
	Deleted    bool
}

func (w *StepWork) Table() string         { return TableStepWork }
func (w *StepWork) Key() string           { return w.ID }
func (w *StepWork) Remote() *string       { return w.RemoteID }
func (w *StepWork) ModifiedAt() time.Time { return w.UpdatedAt }

func (w *StepWork) Row() map[string]any {
	return map[string]any{
		"id":          w.ID,
		"user_id":     w.UserID,
		"step_number": w.StepNumber,
		"prompt":      w.Prompt,
		"answer_enc":  w.AnswerEnc,
		"created_at":  w.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":  w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
