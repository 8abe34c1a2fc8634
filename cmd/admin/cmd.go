package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/store"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *store.DB
	production bool
	auth       *auth.Service
	attendance *attendance.Service
	out        io.Writer
	now        func() time.Time
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  bootstrap [-force]                          - create missing tables (dev databases only)")
	fmt.Fprintln(cli.out, "  seed -file FIXTURES.yaml                    - load users and check-ins from a YAML file")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-name NAME] [-admin]  - create or update a user; the password is prompted")
	fmt.Fprintln(cli.out, "  stats                                       - print the administrator counts")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	bootstrapCmd := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	bootstrapForce := bootstrapCmd.Bool("force", false, "Allow bootstrapping when env is production.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedFile := seedCmd.String("file", "", "YAML fixture file.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	for _, fs := range []*flag.FlagSet{bootstrapCmd, seedCmd, addUserCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "bootstrap":
		if err := bootstrapCmd.Parse(args[2:]); err != nil {
			return err
		}
		if cli.production && !*bootstrapForce {
			return errors.New("refusing to bootstrap a production database without -force")
		}
		if err := store.Bootstrap(ctx, cli.db); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "schema ready (%s)\n", cli.db.Driver())
		return nil

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(ctx, *seedFile)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		role := attendance.RoleUser
		if *addUserAdmin {
			role = attendance.RoleAdmin
		}
		return cli.addUser(ctx, *addUserEmail, *addUserName, string(pwd), role)

	case "stats":
		st, err := cli.attendance.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "users: %d\ntoday: %d\ntotal: %d\n", st.TotalUsers, st.TodayCheckIns, st.TotalCheckIns)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
