package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"classportal/internal/account"
	"classportal/internal/config"
	"classportal/internal/portalclient"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	cfg config.App
	out io.Writer
	in  io.Reader

	// openAccounts reaches the database directly; mockable.
	openAccounts func(ctx context.Context, cfg config.App) (*account.Service, func(), error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  token -subject SUBJECT                       - mint an identity token for a synced user")
	fmt.Fprintln(cli.out, "  promote -username USERNAME [-revoke]         - grant or revoke the admin flag")
	fmt.Fprintln(cli.out, "  list RESOURCE [-q TEXT] [-date YYYY-MM-DD] [-category C] [-page N]")
	fmt.Fprintln(cli.out, "  watch RESOURCE [-q TEXT] [-n COUNT]          - print every live update")
	fmt.Fprintln(cli.out, "  delete RESOURCE -id ID [-yes]                - delete a record after confirmation")
	fmt.Fprintln(cli.out, "  upload-note -title T -course C FILE...")
	fmt.Fprintln(cli.out, "  add-assignment -title T -course C -question Q [-question Q...]")
	fmt.Fprintln(cli.out, "  add-course -course C -unit N")
	fmt.Fprintln(cli.out, "  add-shop -course C -name N -price P -link URL -deadline dd/mm/yyyy")
	fmt.Fprintln(cli.out, "  announce -kind KIND -description D [-course C] [-venue V] [-attachment FILE]")
	fmt.Fprintln(cli.out, "  chat-send (-to USER_ID | -chat CHAT_ID) (-text T | -file FILE -type image|video|audio)")
	fmt.Fprintln(cli.out, "Resources: announcements, assignments, notes, courses, shop, classmates")
}

// localFlagSet is for commands that never call the api.
func (cli *commandLine) localFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// newFlagSet returns a flag set carrying the shared -url and -token overrides.
func (cli *commandLine) newFlagSet(name string) (*flag.FlagSet, *string, *string) {
	fs := cli.localFlagSet(name)
	baseURL := fs.String("url", cli.cfg.PortalURL, "portal base URL (PORTAL_URL)")
	token := fs.String("token", cli.cfg.PortalToken, "identity token (PORTAL_TOKEN)")
	return fs, baseURL, token
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	name, rest := args[1], args[2:]
	switch name {
	case "token":
		return cli.token(rest)
	case "promote":
		return cli.promote(ctx, rest)
	case "list", "watch", "delete":
		if len(rest) == 0 || strings.HasPrefix(rest[0], "-") {
			fmt.Fprintf(cli.out, "%s needs a resource\n", name)
			return errHelp
		}
		switch name {
		case "list":
			return cli.list(ctx, rest[0], rest[1:])
		case "watch":
			return cli.watch(ctx, rest[0], rest[1:])
		default:
			return cli.delete(ctx, rest[0], rest[1:])
		}
	case "upload-note":
		return cli.uploadNote(ctx, rest)
	case "add-assignment":
		return cli.addAssignment(ctx, rest)
	case "add-course":
		return cli.addCourse(ctx, rest)
	case "add-shop":
		return cli.addShop(ctx, rest)
	case "announce":
		return cli.announce(ctx, rest)
	case "chat-send":
		return cli.chatSend(ctx, rest)
	default:
		cli.printUsage()
		return errHelp
	}
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func client(baseURL, token *string) *portalclient.Client {
	return portalclient.New(*baseURL, *token)
}
