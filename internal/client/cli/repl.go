package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches onto. App satisfies
// it; tests substitute a stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Reset(ctx context.Context) error
	AddEntry(ctx context.Context) error
	ListEntries(ctx context.Context) error
	ShowEntry(ctx context.Context) error
	DeleteEntry(ctx context.Context) error
	CheckIn(ctx context.Context) error
	ListCheckIns(ctx context.Context) error
	ShowStreak(ctx context.Context) error
	ListAchievements(ctx context.Context) error
	AddStepWork(ctx context.Context) error
	ListStepWork(ctx context.Context) error
	ShowStepWork(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Retry(ctx context.Context) error
}

const helpLoggedOut = "Available commands: login, exit"
const helpLoggedIn = "Available commands: journal, entries, show, delete, checkin, checkins, streak, awards, " +
	"step, steps, stepshow, sync, status, retry, logout, reset, exit"

// runREPL reads commands line by line and dispatches them until EOF or an
// explicit exit. Handler errors are printed, never fatal: a failed command
// leaves the session running.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("stepwise [%s] > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		if cmd == "exit" || cmd == "quit" {
			return
		}
		if cmd == "help" {
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue
		}

		var err error
		if !a.isLoggedIn() {
			switch cmd {
			case "login":
				err = a.Login(ctx)
			default:
				printlnFn("Unknown command. " + helpLoggedOut)
				continue
			}
		} else {
			switch cmd {
			case "journal":
				err = a.AddEntry(ctx)
			case "entries", "list":
				err = a.ListEntries(ctx)
			case "show":
				err = a.ShowEntry(ctx)
			case "delete":
				err = a.DeleteEntry(ctx)
			case "checkin":
				err = a.CheckIn(ctx)
			case "checkins":
				err = a.ListCheckIns(ctx)
			case "streak":
				err = a.ShowStreak(ctx)
			case "awards", "achievements":
				err = a.ListAchievements(ctx)
			case "step":
				err = a.AddStepWork(ctx)
			case "steps":
				err = a.ListStepWork(ctx)
			case "stepshow":
				err = a.ShowStepWork(ctx)
			case "sync":
				err = a.Sync(ctx)
			case "status":
				err = a.Status(ctx)
			case "retry":
				err = a.Retry(ctx)
			case "logout":
				err = a.Logout(ctx)
			case "reset":
				err = a.Reset(ctx)
			default:
				printlnFn("Unknown command. " + helpLoggedIn)
				continue
			}
		}
		if err != nil {
			printlnFn("Error: " + err.Error())
		}
	}
}
