package cli

import (
	"context"

	"github.com/stepwise-app/stepwise/internal/client/models"
)

// AddStepWork records an answer to a program step prompt.
func (a *App) AddStepWork(ctx context.Context) error {
	user := a.currentUser()
	key, err := a.keys.GetKey(ctx, user)
	if err != nil {
		return err
	}

	step, err := GetInt(a.reader, "Step number", 1, 12, a.out)
	if err != nil {
		return err
	}
	prompt, err := GetSimpleText(a.reader, "Prompt", a.out)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Your answer", a.out)
	if err != nil {
		return err
	}
	var answer *string
	if text != "" {
		answer = &text
	}

	w, err := a.store.SaveStepAnswer(ctx, key, user, step, prompt, answer)
	if err != nil {
		return err
	}
	a.engine.Trigger()
	a.printf("Saved step %d work %s", w.StepNumber, w.ID)
	return nil
}

// ListStepWork prints step records, answers omitted.
func (a *App) ListStepWork(ctx context.Context) error {
	list, err := a.store.ListStepWork(ctx, a.currentUser())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No step work yet")
		return nil
	}
	for _, w := range list {
		a.printf("%s  step %2d  %s  [%s]",
			w.ID, w.StepNumber, w.Prompt,
			a.syncLabel(ctx, models.TableStepWork, w.ID, w.SyncStatus))
	}
	return nil
}

// ShowStepWork prints one step record with its decrypted answer.
func (a *App) ShowStepWork(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Step work id", a.out)
	if err != nil {
		return err
	}
	key, err := a.keys.GetKey(ctx, a.currentUser())
	if err != nil {
		return err
	}

	w, answer, err := a.store.GetStepAnswer(ctx, key, id)
	if err != nil {
		return err
	}
	a.printf("Step %d: %s", w.StepNumber, w.Prompt)
	if answer != nil {
		a.printf("%s", *answer)
	} else {
		a.printf("(no answer yet)")
	}
	return nil
}
