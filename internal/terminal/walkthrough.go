package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nextsteps-go/internal/flow"
	"nextsteps-go/internal/models"
)

var ErrAborted = errors.New("walkthrough aborted")

// Walkthrough drives a flow controller from terminal input until the flow
// reaches a terminal view.
type Walkthrough struct {
	controller      *flow.Controller
	in              LineReader
	out             io.Writer
	registrationURL string
}

func NewWalkthrough(controller *flow.Controller, in LineReader, out io.Writer, registrationURL string) *Walkthrough {
	return &Walkthrough{
		controller:      controller,
		in:              in,
		out:             out,
		registrationURL: registrationURL,
	}
}

func (w *Walkthrough) Run(ctx context.Context) (flow.View, error) {
	w.println(BoxStyle.Render(HeaderStyle.Render("Business registration: next steps")))

	for {
		if err := ctx.Err(); err != nil {
			return w.controller.View(), err
		}

		var err error
		switch view := w.controller.View(); view {
		case flow.ViewRegistrationForm:
			err = w.registration()
		case flow.ViewDecision:
			err = w.decision()
		case flow.ViewPaymentHandoff:
			err = w.paymentHandoff()
		case flow.ViewReminderForm:
			err = w.reminderForm(ctx)
		case flow.ViewPaymentSuccess:
			w.println(SuccessStyle.Render("Payment received. We'll be in touch to complete your registration."))
			return view, nil
		case flow.ViewReminderSuccess:
			w.println(SuccessStyle.Render("Reminder set. Check your inbox for a confirmation."))
			return view, nil
		}
		if err != nil {
			return w.controller.View(), err
		}
	}
}

func (w *Walkthrough) registration() error {
	if w.registrationURL != "" {
		w.println(InfoStyle.Render("Complete the registration form at " + w.registrationURL))
	}
	w.println(DimStyle.Render("Type 'done' once submitted, or paste the form's completion message."))

	line, err := w.ask("registration> ")
	if err != nil {
		return err
	}

	if w.controller.HandleEmbedMessage([]byte(line)) {
		return nil
	}
	switch strings.ToLower(line) {
	case "done", "continue":
		_, err := w.controller.Fire(flow.EventContinue)
		return err
	}
	return nil
}

func (w *Walkthrough) decision() error {
	w.println(HeaderStyle.Render("How would you like to continue?"))
	w.println("  1) Pay now")
	w.println("  2) Remind me later")

	line, err := w.ask("choice> ")
	if err != nil {
		return err
	}

	switch strings.ToLower(line) {
	case "1", "pay", "pay now":
		_, err = w.controller.Fire(flow.EventPayNow)
	case "2", "remind", "later", "remind me later":
		_, err = w.controller.Fire(flow.EventRemindLater)
	default:
		w.println(ErrorStyle.Render("Please choose 1 or 2."))
	}
	return err
}

func (w *Walkthrough) paymentHandoff() error {
	w.println(InfoStyle.Render("Complete checkout in the payment window."))

	line, err := w.ask("did the payment succeed? [y/n]> ")
	if err != nil {
		return err
	}

	switch strings.ToLower(line) {
	case "y", "yes":
		_, err = w.controller.Fire(flow.EventPaymentSucceeded)
	case "n", "no":
		_, err = w.controller.Fire(flow.EventPaymentClosed)
	}
	return err
}

func (w *Walkthrough) reminderForm(ctx context.Context) error {
	w.println(HeaderStyle.Render("Set a reminder") + DimStyle.Render("  (type 'back' at any prompt to return)"))

	form := w.controller.Snapshot().Form
	fields := []struct {
		label string
		dst   *string
	}{
		{"email", &form.Email},
		{"name", &form.Name},
		{"business name", &form.BusinessName},
		{"address", &form.Address},
	}
	for _, f := range fields {
		value, back, err := w.field(f.label, *f.dst)
		if err != nil || back {
			return err
		}
		*f.dst = value
	}

	option, back, err := w.reminderOption(form.ReminderTime)
	if err != nil || back {
		return err
	}
	form.ReminderTime = option

	if _, err := w.controller.SetForm(form); err != nil {
		return err
	}

	snap, err := w.controller.Submit(ctx)
	switch {
	case errors.Is(err, flow.ErrValidation):
		for field, msg := range snap.FieldErrors {
			w.println(ErrorStyle.Render(field + ": " + msg))
		}
		return nil
	case errors.Is(err, flow.ErrSubmissionFailed):
		w.println(ErrorStyle.Render(snap.Notice))
		return nil
	}
	return err
}

// field prompts for one form value, keeping current on empty input. back
// reports that the user asked to leave the form.
func (w *Walkthrough) field(label, current string) (string, bool, error) {
	prompt := label
	if current != "" {
		prompt += " [" + current + "]"
	}

	line, err := w.ask(prompt + "> ")
	if err != nil {
		return "", false, err
	}
	if strings.EqualFold(line, "back") {
		_, err := w.controller.Fire(flow.EventBack)
		return "", true, err
	}
	if line == "" {
		return current, false, nil
	}
	return line, false, nil
}

func (w *Walkthrough) reminderOption(current string) (string, bool, error) {
	options := models.ReminderOptions()
	for i, opt := range options {
		marker := " "
		if opt.Value == current {
			marker = "*"
		}
		w.println(fmt.Sprintf(" %s %d) %s", marker, i+1, opt.Label))
	}

	line, err := w.ask("remind me> ")
	if err != nil {
		return "", false, err
	}
	if strings.EqualFold(line, "back") {
		_, err := w.controller.Fire(flow.EventBack)
		return "", true, err
	}
	if line == "" {
		return current, false, nil
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
		return options[n-1].Value, false, nil
	}
	return models.NormalizeReminderTime(line), false, nil
}

func (w *Walkthrough) ask(prompt string) (string, error) {
	w.in.SetPrompt(PromptStyle.Render(prompt))
	line, err := w.in.Readline()
	if err != nil {
		if isEOF(err) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (w *Walkthrough) println(s string) {
	fmt.Fprintln(w.out, s)
}

// ExitCode maps the result of Run onto a process exit code. Leaving the
// walkthrough early, by EOF, interrupt or cancellation, is not a failure.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}
