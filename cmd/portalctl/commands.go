package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"classportal/internal/auth"
	"classportal/internal/chat"
	"classportal/internal/listview"
	"classportal/internal/portalclient"
)

// repeated collects a flag given more than once.
type repeated []string

func (r *repeated) String() string     { return strings.Join(*r, ", ") }
func (r *repeated) Set(v string) error { *r = append(*r, v); return nil }

func (cli *commandLine) print(v any) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readFile(path string) (portalclient.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return portalclient.File{}, err
	}
	return portalclient.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}

func (cli *commandLine) token(args []string) error {
	fs := cli.localFlagSet("token")
	subject := fs.String("subject", "", "identity-provider subject of a synced user")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *subject == "" {
		fs.Usage()
		return errHelp
	}
	tokens, err := auth.Issue(*subject, "user", cli.cfg.JWTIssuer, cli.cfg.JWTSigningKey, cli.cfg.AccessTTL, cli.cfg.RefreshTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tokens.AccessToken)
	return nil
}

func (cli *commandLine) promote(ctx context.Context, args []string) error {
	fs := cli.localFlagSet("promote")
	username := fs.String("username", "", "username to change")
	revoke := fs.Bool("revoke", false, "remove the admin flag instead")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *username == "" {
		fs.Usage()
		return errHelp
	}
	accounts, closeFn, err := cli.openAccounts(ctx, cli.cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := accounts.Promote(ctx, *username, !*revoke); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s admin=%t\n", *username, !*revoke)
	return nil
}

// queryFlags registers the list view criteria on fs.
func queryFlags(fs *flag.FlagSet) func() portalclient.Query {
	text := fs.String("q", "", "text filter")
	date := fs.String("date", "", "creation date YYYY-MM-DD")
	category := fs.String("category", "", "category filter")
	page := fs.Int("page", 1, "page number")
	tz := fs.String("tz", "", "IANA timezone for the date filter")
	course := fs.String("course", "", "course code (shop only)")
	return func() portalclient.Query {
		return portalclient.Query{
			Criteria: listview.Criteria{Text: *text, Date: *date, Category: *category},
			Page:     *page,
			Timezone: *tz,
			Course:   *course,
		}
	}
}

func (cli *commandLine) list(ctx context.Context, resource string, args []string) error {
	fs, baseURL, token := cli.newFlagSet("list")
	query := queryFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	page, err := client(baseURL, token).List(ctx, resource, query())
	if err != nil {
		return err
	}
	return cli.print(page)
}

func (cli *commandLine) watch(ctx context.Context, resource string, args []string) error {
	fs, baseURL, token := cli.newFlagSet("watch")
	query := queryFlags(fs)
	count := fs.Int("n", 0, "stop after this many updates (0 runs until interrupted)")
	if err := parse(fs, args); err != nil {
		return err
	}
	w, err := client(baseURL, token).Watch(ctx, resource, query())
	if err != nil {
		return err
	}
	defer w.Close()

	enc := json.NewEncoder(cli.out)
	for i := 0; *count == 0 || i < *count; i++ {
		page, err := w.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := enc.Encode(page); err != nil {
			return err
		}
	}
	return nil
}

func (cli *commandLine) delete(ctx context.Context, resource string, args []string) error {
	fs, baseURL, token := cli.newFlagSet("delete")
	id := fs.String("id", "", "record id")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		fs.Usage()
		return errHelp
	}
	c := client(baseURL, token)
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	flow := listview.NewDeleteFlow(listview.AdminFlag(me.Admin))
	if err := flow.Open(*id); err != nil {
		return err
	}
	if !*yes {
		fmt.Fprintf(cli.out, "Delete %s %s? [y/N] ", resource, flow.Target())
		answer, _ := bufio.NewReader(cli.in).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			flow.Cancel()
			fmt.Fprintln(cli.out, "cancelled")
			return nil
		}
	}
	if err := flow.Confirm(ctx, c.Deleter(resource)); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "deleted")
	return nil
}

func (cli *commandLine) uploadNote(ctx context.Context, args []string) error {
	fs, baseURL, token := cli.newFlagSet("upload-note")
	title := fs.String("title", "", "note title")
	course := fs.String("course", "", "course code")
	if err := parse(fs, args); err != nil {
		return err
	}
	form := portalclient.NoteForm{Title: *title, CourseCode: *course}
	for _, path := range fs.Args() {
		f, err := readFile(path)
		if err != nil {
			return err
		}
		form.Images = append(form.Images, f)
	}
	note, err := client(baseURL, token).SubmitNote(ctx, form)
	if err != nil {
		return err
	}
	return cli.print(note)
}

func (cli *commandLine) addAssignment(ctx context.Context, args []string) error {
	fs, baseURL, token := cli.newFlagSet("add-assignment")
	title := fs.String("title", "", "assignment title")
	course := fs.String("course", "", "course code")
	var questions repeated
	fs.Var(&questions, "question", "a question; repeat for more")
	if err := parse(fs, args); err != nil {
		return err
	}
	form := portalclient.NewAssignmentForm()
	form.Title, form.CourseCode = *title, *course
	for i, q := range questions {
		if i > 0 {
			if err := form.AddQuestion(); err != nil {
				return err
			}
		}
		form.SetQuestion(i, q)
	}
	a, err := client(baseURL, token).SubmitAssignment(ctx, form)
	if err != nil {
		return err
	}
	return cli.print(a)
}

func (cli *commandLine) addCourse(ctx context.Context, args []string) error {
	fs, baseURL, token := cli.newFlagSet("add-course")
	course := fs.String("course", "", "course code")
	unit := fs.Int("unit", 0, "credit units")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := client(baseURL, token).SubmitCourse(ctx, portalclient.CourseForm{CourseCode: *course, Unit: *unit})
	if err != nil {
		return err
	}
	return cli.print(c)
}

func (cli *commandLine) addShop(ctx context.Context, args []string) error {
	fs, baseURL, token := cli.newFlagSet("add-shop")
	form := portalclient.ShopForm{}
	fs.StringVar(&form.Course, "course", "", "course code")
	fs.StringVar(&form.Name, "name", "", "manual name")
	fs.Float64Var(&form.Price, "price", 0, "price")
	fs.StringVar(&form.URL, "link", "", "payment link")
	fs.StringVar(&form.Deadline, "deadline", "", "deadline dd/mm/yyyy")
	if err := parse(fs, args); err != nil {
		return err
	}
	item, err := client(baseURL, token).SubmitShopItem(ctx, form)
	if err != nil {
		return err
	}
	return cli.print(item)
}

func (cli *commandLine) announce(ctx context.Context, args []string) error {
	fs, baseURL, token := cli.newFlagSet("announce")
	kind := fs.String("kind", "", "App Management | Manual Update | Class Update | School Announcement | Special Announcement")
	description := fs.String("description", "", "announcement text")
	course := fs.String("course", "", "course code (Manual Update, Class Update)")
	venue := fs.String("venue", "", "venue (Class Update)")
	attachment := fs.String("attachment", "", "file to attach (Manual Update)")
	if err := parse(fs, args); err != nil {
		return err
	}
	form, err := portalclient.NewAnnouncementForm(*kind)
	if err != nil {
		return err
	}
	switch f := form.(type) {
	case *portalclient.AppManagementForm:
		f.Description = *description
	case *portalclient.ManualUpdateForm:
		f.Description, f.CourseCode = *description, *course
		if *attachment != "" {
			file, err := readFile(*attachment)
			if err != nil {
				return err
			}
			f.Attachment = &file
		}
	case *portalclient.ClassUpdateForm:
		f.Description, f.CourseCode, f.Venue = *description, *course, *venue
	case *portalclient.SchoolAnnouncementForm:
		f.Description = *description
	case *portalclient.SpecialAnnouncementForm:
		f.Description = *description
	}
	a, err := client(baseURL, token).SubmitAnnouncement(ctx, form)
	if err != nil {
		return err
	}
	return cli.print(a)
}

func (cli *commandLine) chatSend(ctx context.Context, args []string) error {
	fs, baseURL, token := cli.newFlagSet("chat-send")
	to := fs.String("to", "", "classmate user id; opens the conversation on first message")
	chatID := fs.String("chat", "", "existing conversation id")
	text := fs.String("text", "", "message text")
	file := fs.String("file", "", "media file")
	kind := fs.String("type", chat.TypeImage, "media type: image, video or audio")
	if err := parse(fs, args); err != nil {
		return err
	}
	if (*to == "") == (*chatID == "") || (*text == "") == (*file == "") {
		fs.Usage()
		return errHelp
	}
	c := client(baseURL, token)
	draft := chat.Draft{Type: chat.TypeText, Content: *text}
	if *file != "" {
		f, err := readFile(*file)
		if err != nil {
			return err
		}
		if draft, err = c.UploadMedia(ctx, *kind, f); err != nil {
			return err
		}
	}
	var (
		m   chat.Message
		err error
	)
	if *to != "" {
		m, err = c.SendToClassmate(ctx, *to, draft)
	} else {
		m, err = c.SendMessage(ctx, *chatID, draft)
	}
	if err != nil {
		return err
	}
	return cli.print(m)
}
