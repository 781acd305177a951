package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nextsteps-go/internal/flow"
	"nextsteps-go/internal/terminal"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so readline is closed, and the terminal restored,
// before the process exits.
func run() int {
	endpoint := flag.String("endpoint", "http://localhost:8080/api/v1/reminders", "Reminder upsert endpoint")
	registrationURL := flag.String("registration-url", "", "Registration form shown before the decision step")
	skipRegistration := flag.Bool("skip-registration", false, "Start at the decision step")
	timeout := flag.Duration("timeout", 15*time.Second, "Submission timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []flow.Option{}
	if *skipRegistration {
		opts = append(opts, flow.WithInitialView(flow.ViewDecision))
	}
	controller := flow.NewController(flow.NewHTTPSubmitter(*endpoint, *timeout), opts...)

	rl, err := terminal.NewReadline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup readline: %v\n", err)
		return 1
	}
	defer rl.Close()

	_, err = terminal.NewWalkthrough(controller, rl, rl.Stdout(), *registrationURL).Run(ctx)
	code := terminal.ExitCode(err)
	if code != 0 {
		fmt.Fprintln(os.Stderr, terminal.ErrorStyle.Render(err.Error()))
	}
	return code
}
