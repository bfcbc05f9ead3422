package main

import (
	"fmt"
	"os"

	"relcheck/internal/update"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// isInteractiveTerminal reports whether stdin is a TTY.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptForChannel asks which release channel to follow, starting on the
// current one.
func promptForChannel(current update.Channel) (update.Channel, error) {
	choice := current.String()
	form := huh.NewSelect[string]().
		Title("Which releases should relcheck offer?").
		Options(
			huh.NewOption("official (stable releases only)", update.ChannelOfficial.String()),
			huh.NewOption("beta (pre-releases)", update.ChannelBeta.String()),
			huh.NewOption("all (newest of either)", update.ChannelAll.String()),
		).
		Value(&choice)

	if err := form.Run(); err != nil {
		return current, err
	}
	ch, ok := update.ParseChannel(choice)
	if !ok {
		return current, fmt.Errorf("unknown channel %q", choice)
	}
	return ch, nil
}
